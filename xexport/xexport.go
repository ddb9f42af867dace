// Package xexport reads XMODEL_EXPORT / XANIM_EXPORT ASCII scene exports
// into an in-memory skinned model and animation.
package xexport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/kamoji/xexportconv/geom"
)

// InchToCm is the fixed unit conversion applied to every position read from
// a source file. Fixed for this format pairing, not configuration.
const InchToCm = 2.54

type Bone struct {
	Name   string
	Parent int // -1 = root

	WorldPos *geom.Vector3
	WorldRot *geom.Quaternion
	LocalPos *geom.Vector3
	LocalRot *geom.Quaternion
	Scale    *geom.Vector3
}

type Weight struct {
	Bone  int
	Value float32
}

type Vertex struct {
	Pos     *geom.Vector3
	Normal  *geom.Vector3
	Color   [4]uint8
	UV      geom.Vector2
	Weights []Weight
}

// Face indexes the owning mesh's vertex buffer. Winding is already reversed
// relative to the source file's corner order.
type Face struct {
	Verts [3]int
}

// Mesh holds the welded geometry for one material.
type Mesh struct {
	Material int
	Vertexes []*Vertex
	Faces    []Face
}

type Material struct {
	Name    string
	Shader  string
	Texture string
}

type Model struct {
	Version   int
	Bones     []*Bone
	Meshes    []*Mesh
	Materials []*Material

	boneByName map[string]int
}

// BoneByName looks a bone up by case-insensitive name.
func (m *Model) BoneByName(name string) (int, bool) {
	i, ok := m.boneByName[strings.ToLower(name)]
	return i, ok
}

func (m *Model) addBone(b *Bone) {
	if m.boneByName == nil {
		m.boneByName = map[string]int{}
	}
	m.boneByName[strings.ToLower(b.Name)] = len(m.Bones)
	m.Bones = append(m.Bones, b)
}

// FramePart is one part's pose in a frame, stored as read from the source
// (no parent-relative decomposition).
type FramePart struct {
	Offset   *geom.Vector3
	Rotation *geom.Quaternion
}

type Frame struct {
	Parts []FramePart
}

type Animation struct {
	Version   int
	Framerate int

	// PartNames lists the declared animation parts in order. PartBones maps
	// each part to a skeleton bone index, -1 if no bone matched the part
	// name. Frames are stored in part declaration order regardless; the
	// mapping is auxiliary metadata for downstream writers.
	PartNames []string
	PartBones []int

	Frames []*Frame
}

// decodeReader wraps r with a Windows-1252 decoder when the head of the
// stream is not valid UTF-8. Exports written by localized tools carry raw
// codepage bytes in bone and material names.
func decodeReader(r io.Reader) io.Reader {
	buf := make([]byte, 1024)
	n, _ := io.ReadFull(r, buf)
	r = io.MultiReader(bytes.NewReader(buf[:n]), r)
	if !utf8.Valid(buf[:n]) {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}
	return r
}

// ParseModel reads one XMODEL_EXPORT stream.
func ParseModel(r io.Reader) (*Model, error) {
	p := &modelParser{c: newCursor(decodeReader(r))}
	return p.parse()
}

// ParseAnimation reads one XANIM_EXPORT stream. The skeleton of a
// previously parsed model resolves part names to bones.
func ParseAnimation(r io.Reader, model *Model) (*Animation, error) {
	if model == nil || len(model.Bones) == 0 {
		return nil, fmt.Errorf("%w: animation needs a parsed model skeleton", ErrMissingDependency)
	}
	p := &animParser{c: newCursor(decodeReader(r)), model: model}
	return p.parse()
}

func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseModel(f)
}

func LoadAnimation(path string, model *Model) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAnimation(f, model)
}
