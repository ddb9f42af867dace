package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/kamoji/xexportconv/converter"
	"github.com/kamoji/xexportconv/xexport"
	"github.com/qmuntal/gltf"
)

const (
	modelExt = ".xmodel_export"
	animExt  = ".xanim_export"
)

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".glb"
}

func isModel(path string) bool {
	return strings.EqualFold(filepath.Ext(path), modelExt)
}

func isAnim(path string) bool {
	return strings.EqualFold(filepath.Ext(path), animExt)
}

// collectInputs expands directory arguments into the export files they
// contain.
func collectInputs(args []string) ([]string, error) {
	var inputs []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			inputs = append(inputs, a)
			continue
		}
		err = filepath.Walk(a, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && (isModel(path) || isAnim(path)) {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

type job struct {
	input  string
	output string
}

// findSiblingModel looks for a model export next to an animation input, for
// batches converted without an explicit -model.
func findSiblingModel(animPath string) string {
	entries, err := os.ReadDir(filepath.Dir(animPath))
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && isModel(e.Name()) {
			return filepath.Join(filepath.Dir(animPath), e.Name())
		}
	}
	return ""
}

func convertModel(input, output string, skeleton *xexport.Model, options *converter.XEToGLTFOption, textureDir string) error {
	conv := converter.NewXEToGLTFConverter(options)

	if isAnim(input) {
		if skeleton == nil {
			sibling := findSiblingModel(input)
			if sibling == "" {
				return fmt.Errorf("%s: animation input needs -model or a sibling model export", input)
			}
			var err error
			if skeleton, err = xexport.LoadModel(sibling); err != nil {
				return err
			}
		}
		doc, err := conv.Convert(skeleton, textureDir)
		if err != nil {
			return err
		}
		anim, err := xexport.LoadAnimation(input, skeleton)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		converter.AddAnimationToGlb(doc, anim, conv.JointNodes, name, options.Scale)
		return gltf.SaveBinary(doc, output)
	}

	model, err := xexport.LoadModel(input)
	if err != nil {
		return err
	}
	if textureDir == "" {
		textureDir = filepath.Dir(input)
	}
	doc, err := conv.Convert(model, textureDir)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(doc, output)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.XMODEL_EXPORT|input.XANIM_EXPORT|dir... \n", os.Args[0])
		flag.PrintDefaults()
	}
	output := flag.String("o", "", "output file (single input only)")
	modelPath := flag.String("model", "", "XMODEL_EXPORT supplying the skeleton for animation inputs")
	presetFile := flag.String("preset", "", "yaml conversion preset")
	texDir := flag.String("texdir", "", "texture search directory (default: input directory)")
	forceUnlit := flag.Bool("gltfunlit", false, "unlit all materials")
	recompress := flag.Bool("recompress", false, "re-encode all textures")
	texLimit := flag.Int("texlimit", 0, "texture resolution limit (0: unlimited)")
	jobs := flag.Int("j", runtime.NumCPU(), "parallel conversions")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	inputs, err := collectInputs(flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if len(inputs) == 0 {
		log.Fatal("no export files found")
	}
	if *output != "" && len(inputs) > 1 {
		log.Fatal("-o needs a single input file")
	}

	options := &converter.XEToGLTFOption{
		ForceUnlit:             *forceUnlit,
		TextureReCompress:      *recompress,
		TextureResolutionLimit: *texLimit,
	}
	if *presetFile != "" {
		preset, err := converter.LoadPreset(*presetFile)
		if err != nil {
			log.Fatal(err)
		}
		preset.ApplyTo(options)
		if *texDir == "" {
			*texDir = preset.TextureDir
		}
	}

	var skeleton *xexport.Model
	if *modelPath != "" {
		skeleton, err = xexport.LoadModel(*modelPath)
		if err != nil {
			log.Fatal(err)
		}
	}

	queue := make(chan job)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0
	if *jobs < 1 {
		*jobs = 1
	}
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				// Each file's conversion is self-contained; a failure
				// never blocks the rest of the batch.
				opts := *options
				if err := convertModel(j.input, j.output, skeleton, &opts, *texDir); err != nil {
					log.Printf("%s: %v", j.input, err)
					mu.Lock()
					failed++
					mu.Unlock()
				} else {
					log.Printf("%s -> %s", j.input, j.output)
				}
			}
		}()
	}
	for _, input := range inputs {
		out := *output
		if out == "" {
			out = defaultOutputFile(input)
		}
		queue <- job{input: input, output: out}
	}
	close(queue)
	wg.Wait()

	if failed > 0 {
		log.Printf("%d of %d conversions failed", failed, len(inputs))
		os.Exit(1)
	}
}
