package xexport

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/kamoji/xexportconv/geom"
)

const identityBasis = `X 1.0, 0.0, 0.0
Y 0.0, 1.0, 0.0
Z 0.0, 0.0, 1.0
`

func materialBlock(index int, name string) string {
	return fmt.Sprintf(`MATERIAL %d "%s" "Phong" "%s.png"
COLOR 1.000000 1.000000 1.000000 1.000000
TRANSPARENCY 0.000000 0.000000 0.000000 1.000000
AMBIENTCOLOR 0.000000 0.000000 0.000000 1.000000
INCANDESCENCE 0.000000 0.000000 0.000000 1.000000
COEFFS 0.800000 0.000000
GLOW 0.000000 0
REFRACTIVE 6 1.000000
SPECULARCOLOR -1.000000 -1.000000 -1.000000 1.000000
REFLECTIVECOLOR -1.000000 -1.000000 -1.000000 1.000000
REFLECTIVE -1 -1.000000
BLINN -1.000000 -1.000000
PHONG -1.000000
`, index, name, name)
}

func corner(vert int, normal, uv string) string {
	return fmt.Sprintf("VERT %d\nNORMAL %s\nCOLOR 1.0, 1.0, 1.0, 1.0\nUV 1 %s\n", vert, normal, uv)
}

// simpleModel is one root bone, one material, one triangle with three
// distinct fully weighted vertices.
func simpleModel() string {
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 6\n")
	b.WriteString("NUMBONES 1\nBONE 0 -1 \"Root\"\n")
	b.WriteString("BONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("NUMVERTS 3\n")
	for i, p := range []string{"0.0, 0.0, 0.0", "1.0, 0.0, 0.0", "0.0, 1.0, 0.0"} {
		fmt.Fprintf(&b, "VERT %d\nOFFSET %s\nBONES 1\nBONE 0 1.0\n", i, p)
	}
	b.WriteString("NUMFACES 1\nTRI 0 0 0 0\n")
	b.WriteString(corner(0, "0.0, 0.0, 1.0", "0.0 0.0"))
	b.WriteString(corner(1, "0.0, 0.0, 1.0", "1.0 0.0"))
	b.WriteString(corner(2, "0.0, 0.0, 1.0", "0.0 1.0"))
	b.WriteString("NUMOBJECTS 1\nOBJECT 0 \"mesh\"\n")
	b.WriteString("NUMMATERIALS 1\n")
	b.WriteString(materialBlock(0, "body"))
	return b.String()
}

func TestParseModel(t *testing.T) {
	model, err := ParseModel(strings.NewReader(simpleModel()))
	if err != nil {
		t.Fatal(err)
	}

	if len(model.Bones) != 1 || len(model.Meshes) != 1 || len(model.Materials) != 1 {
		t.Fatalf("bones=%d meshes=%d materials=%d", len(model.Bones), len(model.Meshes), len(model.Materials))
	}
	mesh := model.Meshes[0]
	if len(mesh.Vertexes) != 3 {
		t.Fatal("vertex count: ", len(mesh.Vertexes))
	}
	if len(mesh.Faces) != 1 || mesh.Faces[0].Verts != [3]int{2, 1, 0} {
		t.Error("face winding: ", mesh.Faces)
	}
	for i, v := range mesh.Vertexes {
		if len(v.Weights) != 1 || v.Weights[0].Bone != 0 || v.Weights[0].Value != 1.0 {
			t.Error("weights of vertex ", i, v.Weights)
		}
		if v.Color != [4]uint8{255, 255, 255, 255} {
			t.Error("color of vertex ", i, v.Color)
		}
	}
	// Positions scaled by exactly 2.54.
	if v := mesh.Vertexes[1]; v.Pos.X != 2.54 || v.Pos.Y != 0 || v.Pos.Z != 0 {
		t.Error("position: ", v.Pos)
	}
	// UV is flipped vertically.
	if uv := mesh.Vertexes[2].UV; uv.X != 0 || uv.Y != 0 {
		t.Error("uv: ", uv)
	}
	if model.Materials[0].Name != "body" || model.Materials[0].Texture != "body.png" {
		t.Error("material: ", model.Materials[0])
	}
	if i, ok := model.BoneByName("rOoT"); !ok || i != 0 {
		t.Error("bone lookup: ", i, ok)
	}
}

func twoBoneSkeleton(childBasis string) string {
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 6\n")
	b.WriteString("NUMBONES 2\nBONE 0 -1 \"Root\"\nBONE 1 0 \"Child\"\n")
	b.WriteString("BONE 0\nOFFSET 0.0, 0.0, 0.0\nSCALE 1.0, 1.0, 1.0\n" + identityBasis)
	b.WriteString("BONE 1\nOFFSET 10.0, 0.0, 0.0\n" + childBasis)
	b.WriteString("NUMVERTS 0\nNUMFACES 0\nNUMMATERIALS 0\n")
	return b.String()
}

func TestParseModel_LocalTransforms(t *testing.T) {
	model, err := ParseModel(strings.NewReader(twoBoneSkeleton(identityBasis)))
	if err != nil {
		t.Fatal(err)
	}
	root, child := model.Bones[0], model.Bones[1]
	if *root.LocalPos != *root.WorldPos || *root.LocalRot != *root.WorldRot {
		t.Error("root local != world")
	}
	if child.LocalPos.Sub(geom.NewVector3(25.4, 0, 0)).Len() > 1e-5 {
		t.Error("child local pos: ", child.LocalPos)
	}
	if child.LocalRot.Sub(geom.NewQuaternion(0, 0, 0, 1)).Len() > 1e-6 {
		t.Error("child local rot: ", child.LocalRot)
	}
}

func TestParseModel_LocalTransformRoundTrip(t *testing.T) {
	// Parent rotated 90 deg around Z, child offset along world Y.
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 6\n")
	b.WriteString("NUMBONES 2\nBONE 0 -1 \"Root\"\nBONE 1 0 \"Child\"\n")
	b.WriteString("BONE 0\nOFFSET 1.0, 2.0, 3.0\nX 0.0, 1.0, 0.0\nY -1.0, 0.0, 0.0\nZ 0.0, 0.0, 1.0\n")
	b.WriteString("BONE 1\nOFFSET 1.0, 12.0, 3.0\n" + identityBasis)
	b.WriteString("NUMVERTS 0\nNUMFACES 0\nNUMMATERIALS 0\n")

	model, err := ParseModel(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	parent, child := model.Bones[0], model.Bones[1]

	// Composing the local transform onto the parent's world transform
	// reproduces the child's world transform.
	rot := parent.WorldRot.Mul(child.LocalRot)
	if rot.Sub(child.WorldRot).Len() > 1e-5 && rot.Add(child.WorldRot).Len() > 1e-5 {
		t.Error("rotation round trip: ", rot, child.WorldRot)
	}
	pos := parent.WorldRot.ApplyTo(child.LocalPos).Add(parent.WorldPos)
	if pos.Sub(child.WorldPos).Len() > 1e-4 {
		t.Error("position round trip: ", pos, child.WorldPos)
	}
	if math.Abs(float64(child.LocalPos.Len()-25.4)) > 1e-4 {
		t.Error("child local distance: ", child.LocalPos)
	}
}

func TestParseModel_CosmeticBones(t *testing.T) {
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 7\n")
	b.WriteString("NUMBONES 1\nNUMCOSMETICBONES 1\n")
	b.WriteString("BONE 0 -1 \"Root\"\nBONE 1 0 \"Cosmetic\"\n")
	b.WriteString("BONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("BONE 1\nOFFSET 1.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("NUMVERTS 0\nNUMFACES 0\nNUMMATERIALS 0\n")
	model, err := ParseModel(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(model.Bones) != 2 {
		t.Error("bones: ", len(model.Bones))
	}
}

// weldModel emits two faces sharing vertices 1 and 2. The shared corners
// carry the attributes given for face 2.
func weldModel(n2, uv2 string) string {
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 6\n")
	b.WriteString("NUMBONES 1\nBONE 0 -1 \"Root\"\n")
	b.WriteString("BONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("NUMVERTS 4\n")
	for i, p := range []string{"0.0, 0.0, 0.0", "1.0, 0.0, 0.0", "0.0, 1.0, 0.0", "1.0, 1.0, 0.0"} {
		fmt.Fprintf(&b, "VERT %d\nOFFSET %s\nBONES 1\nBONE 0 1.0\n", i, p)
	}
	b.WriteString("NUMFACES 2\n")
	b.WriteString("TRI 0 0 0 0\n")
	b.WriteString(corner(0, "0.0, 0.0, 1.0", "0.0 0.0"))
	b.WriteString(corner(1, "0.0, 0.0, 1.0", "1.0 0.0"))
	b.WriteString(corner(2, "0.0, 0.0, 1.0", "0.0 1.0"))
	b.WriteString("TRI 0 0 0 0\n")
	b.WriteString(corner(3, "0.0, 0.0, 1.0", "1.0 1.0"))
	b.WriteString(corner(2, n2, uv2))
	b.WriteString(corner(1, n2, "1.0 0.0"))
	b.WriteString("NUMMATERIALS 1\n")
	b.WriteString(materialBlock(0, "body"))
	return b.String()
}

func TestVertexWelding(t *testing.T) {
	// Identical normal and UV: corners resolve to the same output vertex.
	model, err := ParseModel(strings.NewReader(weldModel("0.0, 0.0, 1.0", "0.0 1.0")))
	if err != nil {
		t.Fatal(err)
	}
	mesh := model.Meshes[0]
	if len(mesh.Vertexes) != 4 {
		t.Error("vertex count with shared corners: ", len(mesh.Vertexes))
	}
	if mesh.Faces[0].Verts != [3]int{2, 1, 0} {
		t.Error("face 0: ", mesh.Faces[0])
	}
	if mesh.Faces[1].Verts != [3]int{1, 2, 3} {
		t.Error("face 1: ", mesh.Faces[1])
	}

	// Different normal: the shared source vertices split.
	model, err = ParseModel(strings.NewReader(weldModel("0.0, 1.0, 0.0", "0.0 1.0")))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(model.Meshes[0].Vertexes); n != 6 {
		t.Error("vertex count with split normals: ", n)
	}

	// Different UV on one shared corner: only that corner splits.
	model, err = ParseModel(strings.NewReader(weldModel("0.0, 0.0, 1.0", "0.5 0.5")))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(model.Meshes[0].Vertexes); n != 5 {
		t.Error("vertex count with split uvs: ", n)
	}
}

func TestWeightNormalization(t *testing.T) {
	var b strings.Builder
	b.WriteString("MODEL\nVERSION 6\n")
	b.WriteString("NUMBONES 2\nBONE 0 -1 \"Root\"\nBONE 1 0 \"Child\"\n")
	b.WriteString("BONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("BONE 1\nOFFSET 1.0, 0.0, 0.0\n" + identityBasis)
	b.WriteString("NUMVERTS 3\n")
	b.WriteString("VERT 0\nOFFSET 0.0, 0.0, 0.0\nBONES 2\nBONE 0 3.0\nBONE 1 1.0\n")
	b.WriteString("VERT 1\nOFFSET 1.0, 0.0, 0.0\nBONES 1\nBONE 0 0.5\n")
	b.WriteString("VERT 2\nOFFSET 0.0, 1.0, 0.0\nBONES 1\nBONE 1 2.0\n")
	b.WriteString("NUMFACES 1\nTRI 0 0 0 0\n")
	b.WriteString(corner(0, "0.0, 0.0, 1.0", "0.0 0.0"))
	b.WriteString(corner(1, "0.0, 0.0, 1.0", "1.0 0.0"))
	b.WriteString(corner(2, "0.0, 0.0, 1.0", "0.0 1.0"))
	b.WriteString("NUMMATERIALS 1\n")
	b.WriteString(materialBlock(0, "body"))

	model, err := ParseModel(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range model.Meshes[0].Vertexes {
		var sum float32
		for _, w := range v.Weights {
			sum += w.Value
		}
		if math.Abs(float64(sum-1)) > 1e-6 {
			t.Error("weight sum of vertex ", i, sum)
		}
	}
	v0 := model.Meshes[0].Vertexes[0]
	if v0.Weights[0].Value != 0.75 || v0.Weights[1].Value != 0.25 {
		t.Error("normalized weights: ", v0.Weights)
	}
}

func TestParseModel_Errors(t *testing.T) {
	boneHead := "MODEL\nVERSION 6\nNUMBONES 2\n"
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			"bone index out of sequence",
			boneHead + "BONE 1 -1 \"Root\"\n",
			ErrStructuralMismatch,
		},
		{
			"parent does not precede bone",
			boneHead + "BONE 0 -1 \"Root\"\nBONE 1 1 \"Child\"\n",
			ErrStructuralMismatch,
		},
		{
			"bone transform out of sequence",
			"MODEL\nVERSION 6\nNUMBONES 1\nBONE 0 -1 \"Root\"\nBONE 1\n",
			ErrStructuralMismatch,
		},
		{
			"unexpected token name",
			"MODEL\nVERSION 6\nNUMFACES 1\n",
			ErrUnexpectedToken,
		},
		{
			"missing header",
			"VERSION 6\n",
			ErrUnexpectedToken,
		},
		{
			"weight bone out of range",
			"MODEL\nVERSION 6\nNUMBONES 1\nBONE 0 -1 \"Root\"\nBONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis +
				"NUMVERTS 1\nVERT 0\nOFFSET 0.0, 0.0, 0.0\nBONES 1\nBONE 1 1.0\n",
			ErrOutOfRange,
		},
		{
			"negative weight",
			"MODEL\nVERSION 6\nNUMBONES 1\nBONE 0 -1 \"Root\"\nBONE 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis +
				"NUMVERTS 1\nVERT 0\nOFFSET 0.0, 0.0, 0.0\nBONES 1\nBONE 0 -0.5\n",
			ErrOutOfRange,
		},
		{
			"material index out of sequence",
			"MODEL\nVERSION 6\nNUMBONES 0\nNUMVERTS 0\nNUMFACES 0\nNUMMATERIALS 1\n" + materialBlock(1, "body"),
			ErrStructuralMismatch,
		},
		{
			"non numeric count",
			"MODEL\nVERSION 6\nNUMBONES x\n",
			ErrUnexpectedToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
