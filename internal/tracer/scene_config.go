package tracer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scene definitions live in a yaml file so new scenes need no code changes.
// Colors are 0..255 byte triples; positions are world-space float triples.

type sceneFile struct {
	Scenes   []SceneDef   `yaml:"scenes"`
	Meshes   []MeshDef    `yaml:"meshes"`
	Textures []TextureDef `yaml:"textures"`
}

// MeshDef names an OBJ file to be loaded into the asset store at startup.
type MeshDef struct {
	ID  uint32 `yaml:"id"`
	OBJ string `yaml:"obj"`
}

// TextureDef names an image file to be loaded into the asset store at
// startup.
type TextureDef struct {
	ID   uint32 `yaml:"id"`
	File string `yaml:"file"`
}

// SceneDef is the serialized form of one selectable scene.
type SceneDef struct {
	Name    string     `yaml:"name"`
	Sky     [3]int     `yaml:"sky"`
	Ambient float64    `yaml:"ambient"`
	Lights  []lightDef `yaml:"lights"`
	Spheres []struct {
		Center  [3]float64 `yaml:"center"`
		Radius  float64    `yaml:"radius"`
		Color   [3]int     `yaml:"color"`
		Reflect float64    `yaml:"reflect"`
		Texture uint32     `yaml:"texture"`
	} `yaml:"spheres"`
	Planes []struct {
		Point   [3]float64 `yaml:"point"`
		Normal  [3]float64 `yaml:"normal"`
		Color   [3]int     `yaml:"color"`
		Reflect float64    `yaml:"reflect"`
		Checker bool       `yaml:"checker"`
	} `yaml:"planes"`
	Meshes []struct {
		Mesh    uint32     `yaml:"mesh"`
		Offset  [3]float64 `yaml:"offset"`
		Scale   float64    `yaml:"scale"`
		Color   [3]int     `yaml:"color"`
		Reflect float64    `yaml:"reflect"`
	} `yaml:"meshes"`
}

type lightDef struct {
	Position  [3]float64 `yaml:"position"`
	Color     [3]int     `yaml:"color"`
	Intensity float64    `yaml:"intensity"`
}

// SceneRegistry holds every selectable scene definition.
type SceneRegistry struct {
	defs     []SceneDef
	meshes   []MeshDef
	textures []TextureDef
}

// LoadScenes reads a scene definition file.
func LoadScenes(filename string) (*SceneRegistry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseScenes(data)
}

// ParseScenes parses yaml scene definitions.
func ParseScenes(data []byte) (*SceneRegistry, error) {
	var sf sceneFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scenes: %w", err)
	}
	if len(sf.Scenes) == 0 {
		return nil, fmt.Errorf("scene file defines no scenes")
	}
	return &SceneRegistry{defs: sf.Scenes, meshes: sf.Meshes, textures: sf.Textures}, nil
}

// Count returns the number of selectable scenes.
func (reg *SceneRegistry) Count() int {
	return len(reg.defs)
}

// Name returns a scene's display name.
func (reg *SceneRegistry) Name(id int) string {
	if id < 0 || id >= len(reg.defs) {
		return "unknown"
	}
	return reg.defs[id].Name
}

// MeshDefs lists the OBJ files the scenes reference.
func (reg *SceneRegistry) MeshDefs() []MeshDef {
	return reg.meshes
}

// TextureDefs lists the image files the scenes reference.
func (reg *SceneRegistry) TextureDefs() []TextureDef {
	return reg.textures
}

// Build materializes scene id. Unknown ids fall back to scene 0, mirroring
// the kernel's historical behavior for out-of-range scene numbers.
func (reg *SceneRegistry) Build(id int) *Scene {
	if id < 0 || id >= len(reg.defs) {
		id = 0
	}
	def := reg.defs[id]

	sc := &Scene{
		Ambient: def.Ambient,
		Sky:     byteColor(def.Sky),
	}
	for _, l := range def.Lights {
		c := byteColor(l.Color)
		if l.Color == ([3]int{}) {
			c = Vec3{1, 1, 1}
		}
		sc.Lights = append(sc.Lights, PointLight{
			Position:  vec(l.Position),
			Color:     c,
			Intensity: l.Intensity,
		})
	}
	for _, s := range def.Spheres {
		sc.Spheres = append(sc.Spheres, Sphere{
			Center: vec(s.Center),
			Radius: s.Radius,
			Mat:    Material{Color: byteColor(s.Color), Reflect: s.Reflect, TextureID: s.Texture},
		})
	}
	for _, p := range def.Planes {
		sc.Planes = append(sc.Planes, Plane{
			Point:  vec(p.Point),
			Normal: vec(p.Normal).Normalize(),
			Mat:    Material{Color: byteColor(p.Color), Reflect: p.Reflect, Checker: p.Checker},
		})
	}
	for _, m := range def.Meshes {
		scale := m.Scale
		if scale == 0 {
			scale = 1
		}
		sc.Meshes = append(sc.Meshes, MeshInstance{
			MeshID: m.Mesh,
			Offset: vec(m.Offset),
			Scale:  scale,
			Mat:    Material{Color: byteColor(m.Color), Reflect: m.Reflect},
		})
	}
	return sc
}

func vec(v [3]float64) Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

func byteColor(c [3]int) Vec3 {
	return Vec3{float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255}
}
