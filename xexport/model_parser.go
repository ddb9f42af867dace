package xexport

import (
	"fmt"

	"github.com/kamoji/xexportconv/geom"
)

// materialParamTokens is the number of shading parameter tokens following
// each MATERIAL record (COLOR, TRANSPARENCY, AMBIENTCOLOR, INCANDESCENCE,
// COEFFS, GLOW, REFRACTIVE, SPECULARCOLOR, REFLECTIVECOLOR, REFLECTIVE,
// BLINN, PHONG). Consumed to keep the stream aligned, never modeled.
const materialParamTokens = 12

type modelParser struct {
	c     *Cursor
	model *Model
}

// srcVertex is a source vertex as declared in the vertex buffer, before
// welding. Positions stay in source units until a face corner emits them.
type srcVertex struct {
	pos       *geom.Vector3
	weights   []Weight
	weightSum float32
}

// weldRef records an already emitted output vertex for one source vertex.
type weldRef struct {
	material int
	index    int
}

func (p *modelParser) parse() (*Model, error) {
	if err := p.c.Marker("MODEL"); err != nil {
		return nil, err
	}
	version, err := p.c.UInt("VERSION")
	if err != nil {
		return nil, err
	}
	p.model = &Model{Version: version}

	if err := p.parseBones(); err != nil {
		return nil, err
	}
	verts, err := p.parseVerts()
	if err != nil {
		return nil, err
	}
	meshes, err := p.parseFaces(verts)
	if err != nil {
		return nil, err
	}
	if err := p.parseMaterials(meshes); err != nil {
		return nil, err
	}
	return p.model, nil
}

func (p *modelParser) parseBones() error {
	numBones, err := p.c.UInt("NUMBONES")
	if err != nil {
		return err
	}
	if t, err := p.c.next(); err == nil {
		if t.Name == "NUMCOSMETICBONES" && len(t.Args) >= 1 {
			n, err := t.uintArg(0)
			if err != nil {
				return err
			}
			numBones += n
		} else {
			p.c.unread(t)
		}
	}

	// Bone table. Parents must precede children: the transform
	// decomposition below consumes the parent's world transform.
	for i := 0; i < numBones; i++ {
		index, parent, name, err := p.c.BoneDef("BONE")
		if err != nil {
			return err
		}
		if index != i {
			return fmt.Errorf("%w: bone %d declared at position %d", ErrStructuralMismatch, index, i)
		}
		if parent < -1 || parent >= i {
			return fmt.Errorf("%w: bone %q parent %d does not precede it", ErrStructuralMismatch, name, parent)
		}
		p.model.addBone(&Bone{Name: name, Parent: parent})
	}

	for i := 0; i < numBones; i++ {
		index, err := p.c.UInt("BONE")
		if err != nil {
			return err
		}
		if index != i {
			return fmt.Errorf("%w: bone transform %d declared at position %d", ErrStructuralMismatch, index, i)
		}
		offset, err := p.c.Vector3("OFFSET")
		if err != nil {
			return err
		}
		scale := geom.NewVector3(1, 1, 1)
		if t, err := p.c.next(); err == nil {
			if t.Name == "SCALE" {
				p.c.unread(t)
				if scale, err = p.c.Vector3("SCALE"); err != nil {
					return err
				}
			} else {
				p.c.unread(t)
			}
		}
		x, err := p.c.Vector3("X")
		if err != nil {
			return err
		}
		y, err := p.c.Vector3("Y")
		if err != nil {
			return err
		}
		z, err := p.c.Vector3("Z")
		if err != nil {
			return err
		}

		b := p.model.Bones[i]
		b.WorldPos = offset.Scale(InchToCm)
		b.WorldRot = geom.NewQuaternionFromBasis(x, y, z)
		b.Scale = scale
		if b.Parent < 0 {
			b.LocalPos = b.WorldPos
			b.LocalRot = b.WorldRot
		} else {
			parent := p.model.Bones[b.Parent]
			inv := parent.WorldRot.Inverse()
			b.LocalRot = inv.Mul(b.WorldRot)
			b.LocalPos = inv.ApplyTo(b.WorldPos.Sub(parent.WorldPos))
		}
	}
	return nil
}

func (p *modelParser) parseVerts() ([]*srcVertex, error) {
	t, err := p.c.next()
	if err != nil {
		return nil, fmt.Errorf("%w: want NUMVERTS, got end of stream", ErrUnexpectedToken)
	}
	if t.Name != "NUMVERTS" && t.Name != "NUMVERTS32" {
		return nil, fmt.Errorf("%w: want NUMVERTS, got %s (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	if len(t.Args) < 1 {
		return nil, fmt.Errorf("%w: %s wants a count (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	numVerts, err := t.uintArg(0)
	if err != nil {
		return nil, err
	}

	verts := make([]*srcVertex, numVerts)
	for i := 0; i < numVerts; i++ {
		index, err := p.vertIndex()
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= numVerts {
			return nil, fmt.Errorf("%w: vertex index %d of %d", ErrOutOfRange, index, numVerts)
		}
		pos, err := p.c.Vector3("OFFSET")
		if err != nil {
			return nil, err
		}
		numWeights, err := p.c.UInt("BONES")
		if err != nil {
			return nil, err
		}
		v := &srcVertex{pos: pos, weights: make([]Weight, numWeights)}
		for j := 0; j < numWeights; j++ {
			bone, w, err := p.c.BoneWeight("BONE")
			if err != nil {
				return nil, err
			}
			if bone < 0 || bone >= len(p.model.Bones) {
				return nil, fmt.Errorf("%w: vertex %d references bone %d of %d", ErrOutOfRange, index, bone, len(p.model.Bones))
			}
			if w < 0 {
				return nil, fmt.Errorf("%w: vertex %d has negative weight %v", ErrOutOfRange, index, w)
			}
			v.weights[j] = Weight{Bone: bone, Value: w}
			v.weightSum += w
		}
		verts[index] = v
	}
	return verts, nil
}

// vertIndex consumes a VERT or VERT32 token.
func (p *modelParser) vertIndex() (int, error) {
	t, err := p.c.next()
	if err != nil {
		return 0, fmt.Errorf("%w: want VERT, got end of stream", ErrUnexpectedToken)
	}
	if t.Name != "VERT" && t.Name != "VERT32" {
		return 0, fmt.Errorf("%w: want VERT, got %s (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	if len(t.Args) < 1 {
		return 0, fmt.Errorf("%w: %s wants an index (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	return t.uintArg(0)
}

func (p *modelParser) parseFaces(verts []*srcVertex) ([]*Mesh, error) {
	numFaces, err := p.c.UInt("NUMFACES")
	if err != nil {
		return nil, err
	}

	// meshes is indexed by material; entries appear as faces reference them.
	var meshes []*Mesh
	welds := make([][]weldRef, len(verts))

	for i := 0; i < numFaces; i++ {
		material, err := p.triMaterial()
		if err != nil {
			return nil, err
		}
		for len(meshes) <= material {
			meshes = append(meshes, nil)
		}
		if meshes[material] == nil {
			meshes[material] = &Mesh{Material: material}
		}
		mesh := meshes[material]

		var corners [3]int
		for c := 0; c < 3; c++ {
			index, err := p.vertIndex()
			if err != nil {
				return nil, err
			}
			if index < 0 || index >= len(verts) || verts[index] == nil {
				return nil, fmt.Errorf("%w: face corner references vertex %d of %d", ErrOutOfRange, index, len(verts))
			}
			normal, err := p.c.Vector3("NORMAL")
			if err != nil {
				return nil, err
			}
			color, err := p.c.Vector4("COLOR")
			if err != nil {
				return nil, err
			}
			uv, err := p.c.UV("UV")
			if err != nil {
				return nil, err
			}
			corners[c] = weldCorner(mesh, material, welds, verts, index, normal, uv, color)
		}
		// Reverse winding for the target convention.
		mesh.Faces = append(mesh.Faces, Face{Verts: [3]int{corners[2], corners[1], corners[0]}})
	}
	return meshes, nil
}

// triMaterial consumes a TRI or TRI16 token and returns the material index.
// TRI carries (object index, material index, ...); the object index is part
// of the unused per-object data.
func (p *modelParser) triMaterial() (int, error) {
	t, err := p.c.next()
	if err != nil {
		return 0, fmt.Errorf("%w: want TRI, got end of stream", ErrUnexpectedToken)
	}
	if t.Name != "TRI" && t.Name != "TRI16" {
		return 0, fmt.Errorf("%w: want TRI, got %s (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	if len(t.Args) < 2 {
		return 0, fmt.Errorf("%w: %s wants object and material indices (line %d)", ErrUnexpectedToken, t.Name, t.Line)
	}
	return t.uintArg(1)
}

// weldCorner resolves a face corner to an output vertex in mesh, reusing an
// earlier emission for the same source vertex when normal and UV match
// exactly, and emitting a new vertex otherwise.
func weldCorner(mesh *Mesh, material int, welds [][]weldRef, verts []*srcVertex, index int, normal *geom.Vector3, uv *geom.Vector2, color *geom.Vector4) int {
	flipped := geom.Vector2{X: uv.X, Y: 1 - uv.Y}
	for _, ref := range welds[index] {
		if ref.material != material {
			continue
		}
		v := mesh.Vertexes[ref.index]
		if *v.Normal == *normal && v.UV == flipped {
			return ref.index
		}
	}

	src := verts[index]
	weights := make([]Weight, len(src.weights))
	copy(weights, src.weights)
	if src.weightSum > 0 {
		for i := range weights {
			weights[i].Value /= src.weightSum
		}
	}
	v := &Vertex{
		Pos:     src.pos.Scale(InchToCm),
		Normal:  normal,
		Color:   quantizeColor(color),
		UV:      flipped,
		Weights: weights,
	}
	emitted := len(mesh.Vertexes)
	mesh.Vertexes = append(mesh.Vertexes, v)
	welds[index] = append(welds[index], weldRef{material: material, index: emitted})
	return emitted
}

func quantizeColor(c *geom.Vector4) [4]uint8 {
	q := func(f float32) uint8 {
		if f <= 0 {
			return 0
		}
		if f >= 1 {
			return 255
		}
		return uint8(f * 255)
	}
	return [4]uint8{q(c.X), q(c.Y), q(c.Z), q(c.W)}
}

func (p *modelParser) parseMaterials(meshes []*Mesh) error {
	// Per-object records precede the material list in some exports; they
	// carry no geometry and are skipped.
	if t, err := p.c.next(); err == nil {
		if t.Name == "NUMOBJECTS" && len(t.Args) >= 1 {
			n, err := t.uintArg(0)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				if _, err := p.c.request("OBJECT", 2); err != nil {
					return err
				}
			}
		} else {
			p.c.unread(t)
		}
	}

	numMaterials, err := p.c.UInt("NUMMATERIALS")
	if err != nil {
		return err
	}
	if len(meshes) > numMaterials {
		return fmt.Errorf("%w: faces reference material %d of %d", ErrOutOfRange, len(meshes)-1, numMaterials)
	}
	for i := 0; i < numMaterials; i++ {
		index, name, t, err := p.c.IndexedName("MATERIAL")
		if err != nil {
			return err
		}
		if index != i {
			return fmt.Errorf("%w: material %d declared at position %d", ErrStructuralMismatch, index, i)
		}
		m := &Material{Name: name}
		if len(t.Args) > 2 {
			m.Shader = t.Args[2]
		}
		if len(t.Args) > 3 {
			m.Texture = t.Args[3]
		}
		p.model.Materials = append(p.model.Materials, m)
		if err := p.c.Skip(materialParamTokens); err != nil {
			return err
		}
	}

	// One mesh per declared material, in declaration order.
	p.model.Meshes = make([]*Mesh, numMaterials)
	for i := range p.model.Meshes {
		if i < len(meshes) && meshes[i] != nil {
			p.model.Meshes[i] = meshes[i]
		} else {
			p.model.Meshes[i] = &Mesh{Material: i}
		}
	}
	return nil
}
