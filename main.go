package main

import (
	"log"
	"os"
	"runtime"

	"blocktrace/internal/config"
	"blocktrace/internal/monitoring"
	"blocktrace/internal/sched"
	"blocktrace/internal/tracer"
	"blocktrace/internal/viewer"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg := config.MustLoadConfig(configPath)

	registry, err := tracer.LoadScenes(cfg.Scenes.File)
	if err != nil {
		log.Fatalf("Failed to load scenes: %v", err)
	}

	store := tracer.NewAssetStore()
	serial := sched.NewSerializer()
	loadAssets(serial, registry, store)

	scheduler := sched.New(func() sched.BlockRenderer {
		return tracer.NewWorker(registry, store)
	})
	workers := cfg.Render.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	scheduler.ResizePool(workers)

	// Set window properties from config
	ebiten.SetWindowSize(cfg.GetScreenWidth(), cfg.GetScreenHeight())
	ebiten.SetWindowTitle(cfg.Display.WindowTitle)
	if cfg.Display.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}

	v := viewer.New(cfg, scheduler, serial, registry, monitoring.NewMonitor())
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}

// loadAssets stores the meshes and textures the scene file references and
// rebuilds the acceleration structures. Asset mutations go through the
// serializer like every other renderer-state operation; a missing file is a
// warning, not a startup failure, because the remaining scenes still render.
func loadAssets(serial *sched.Serializer, registry *tracer.SceneRegistry, store *tracer.AssetStore) {
	for _, md := range registry.MeshDefs() {
		md := md
		ticket := serial.Submit(func() error {
			f, err := os.Open(md.OBJ)
			if err != nil {
				return err
			}
			defer f.Close()
			mesh, err := tracer.ParseOBJ(f)
			if err != nil {
				return err
			}
			store.StoreMesh(md.ID, mesh)
			return nil
		})
		if err := ticket.Wait(); err != nil {
			log.Printf("Warning: Failed to load mesh %d from %s: %v", md.ID, md.OBJ, err)
		}
	}

	for _, td := range registry.TextureDefs() {
		td := td
		ticket := serial.Submit(func() error {
			f, err := os.Open(td.File)
			if err != nil {
				return err
			}
			defer f.Close()
			tex, err := tracer.DecodeTexture(f)
			if err != nil {
				return err
			}
			store.StoreTexture(td.ID, tex)
			return nil
		})
		if err := ticket.Wait(); err != nil {
			log.Printf("Warning: Failed to load texture %d from %s: %v", td.ID, td.File, err)
		}
	}

	serial.Submit(func() error {
		store.RebuildAccel()
		return nil
	})
}
