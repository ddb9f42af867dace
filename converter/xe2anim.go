package converter

import (
	"log"

	"github.com/kamoji/xexportconv/xexport"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// AddAnimationToGlb appends anim as a glTF animation. jointNodes maps
// skeleton bone index to node index (the converter's JointNodes). Parts
// without a bone mapping get no channel; their names are kept in the
// animation extras so the data is not silently dropped.
func AddAnimationToGlb(doc *gltf.Document, anim *xexport.Animation, jointNodes []uint32, name string, scale float32) {
	if scale == 0 {
		scale = 0.01
	}
	a := gltf.Animation{Name: name}

	framerate := anim.Framerate
	if framerate == 0 {
		framerate = 30
	}
	keys := make([]float32, len(anim.Frames))
	for i := range keys {
		keys[i] = float32(i) / float32(framerate)
	}
	keysAcc := modeler.WriteAccessor(doc, gltf.TargetArrayBuffer, keys)

	var unmapped []string
	for part, bone := range anim.PartBones {
		if bone < 0 || bone >= len(jointNodes) {
			unmapped = append(unmapped, anim.PartNames[part])
			continue
		}
		node := jointNodes[bone]

		translations := make([][3]float32, len(anim.Frames))
		rotations := make([][4]float32, len(anim.Frames))
		for i, f := range anim.Frames {
			p := f.Parts[part]
			translations[i] = [3]float32{p.Offset.X * scale, p.Offset.Y * scale, p.Offset.Z * scale}
			rotations[i] = [4]float32{p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Rotation.W}
		}

		a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(uint32(keysAcc)),
			Output:        gltf.Index(uint32(modeler.WritePosition(doc, translations))),
			Interpolation: gltf.InterpolationLinear,
		})
		a.Channels = append(a.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(node),
				Path: gltf.TRSTranslation,
			},
		})

		a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(uint32(keysAcc)),
			Output:        gltf.Index(uint32(modeler.WriteTangent(doc, rotations))),
			Interpolation: gltf.InterpolationLinear,
		})
		a.Channels = append(a.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(node),
				Path: gltf.TRSRotation,
			},
		})
	}

	if len(unmapped) > 0 {
		log.Println("unmapped animation parts:", unmapped)
		a.Extras = map[string]interface{}{"unmappedParts": unmapped}
	}
	if len(a.Channels) > 0 || len(unmapped) > 0 {
		doc.Animations = append(doc.Animations, &a)
	}
}
