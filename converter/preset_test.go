package converter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPreset(t *testing.T) {
	yml := `
textureScale: 0.5
textureResolutionLimit: 1024
forceUnlit: true
materials:
  body:
    texture: body_d.png
    doubleSided: true
  glass:
    unlit: true
`
	path := filepath.Join(t.TempDir(), "preset.yaml")
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPreset(path)
	if err != nil {
		t.Fatal(err)
	}

	options := &XEToGLTFOption{}
	p.ApplyTo(options)

	if options.TextureScale != 0.5 || options.TextureResolutionLimit != 1024 {
		t.Error("texture options: ", options.TextureScale, options.TextureResolutionLimit)
	}
	if !options.ForceUnlit {
		t.Error("forceUnlit not applied")
	}
	body := options.MaterialSettings["body"]
	if body == nil || body.Texture != "body_d.png" || !body.DoubleSided {
		t.Error("material setting: ", body)
	}
	if glass := options.MaterialSettings["glass"]; glass == nil || !glass.Unlit {
		t.Error("material setting: ", glass)
	}
}

func TestLoadPreset_NotFound(t *testing.T) {
	if _, err := LoadPreset(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
