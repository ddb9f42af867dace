package converter

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Preset is an optional per-batch conversion configuration.
type Preset struct {
	TextureDir             string  `yaml:"textureDir"`
	TextureScale           float32 `yaml:"textureScale"`
	TextureResolutionLimit int     `yaml:"textureResolutionLimit"`
	TextureReCompress      bool    `yaml:"textureReCompress"`
	ForceUnlit             bool    `yaml:"forceUnlit"`

	// Materials overrides settings per material name.
	Materials map[string]*MaterialSetting `yaml:"materials"`
}

type MaterialSetting struct {
	Texture     string `yaml:"texture"`
	DoubleSided bool   `yaml:"doubleSided"`
	Unlit       bool   `yaml:"unlit"`
}

func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Preset) ApplyTo(options *XEToGLTFOption) {
	if p.TextureScale != 0 {
		options.TextureScale = p.TextureScale
	}
	if p.TextureResolutionLimit != 0 {
		options.TextureResolutionLimit = p.TextureResolutionLimit
	}
	options.TextureReCompress = options.TextureReCompress || p.TextureReCompress
	options.ForceUnlit = options.ForceUnlit || p.ForceUnlit
	options.MaterialSettings = p.Materials
}
