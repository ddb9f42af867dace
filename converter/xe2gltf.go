package converter

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kamoji/xexportconv/geom"
	"github.com/kamoji/xexportconv/xexport"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type XEToGLTFOption struct {
	Scale      float32 // Default: 0.01 (centimeters to meters)
	ForceUnlit bool

	TextureReCompress      bool
	TextureBytesThreshold  int64 // 0: unlimited
	TextureResolutionLimit int   // 0: unlimited
	TextureScale           float32

	MaterialSettings map[string]*MaterialSetting
}

type xeToGltf struct {
	*XEToGLTFOption
	*gltf.Document

	// JointNodes maps skeleton bone index to glTF node.
	JointNodes []uint32
}

type textureCache struct {
	srcDir   string
	textures map[string]*textureInfo
}

type textureInfo struct {
	name string
	id   *uint32
	img  image.Image
	err  error
}

func (c *textureCache) get(name string) *textureInfo {
	if t, ok := c.textures[name]; ok {
		return t
	}
	t := &textureInfo{name: name}
	c.textures[name] = t
	return t
}

func (c *textureCache) getImage(name string) (image.Image, error) {
	t := c.get(name)
	if t.img != nil || t.err != nil {
		return t.img, t.err
	}

	f, err := os.Open(filepath.Join(c.srcDir, t.name))
	if err != nil {
		t.err = err
		return nil, err
	}
	defer f.Close()

	t.img, _, t.err = image.Decode(f)
	if t.err != nil && strings.ToLower(filepath.Ext(t.name)) == ".tga" {
		// retry
		f.Seek(0, io.SeekStart)
		t.img, t.err = tga.Decode(f)
	}
	return t.img, t.err
}

func NewXEToGLTFConverter(options *XEToGLTFOption) *xeToGltf {
	if options == nil {
		options = &XEToGLTFOption{}
	}
	if options.Scale == 0 {
		options.Scale = 0.01
	}
	if options.TextureScale == 0 {
		options.TextureScale = 1.0
	}
	return &xeToGltf{
		XEToGLTFOption: options,
		Document:       gltf.NewDocument(),
	}
}

func (m *xeToGltf) addMatrices(mat [][4][4]float32) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i, m := range mat {
		a[i*4+0] = m[0]
		a[i*4+1] = m[1]
		a[i*4+2] = m[2]
		a[i*4+3] = m[3]
	}
	acc := modeler.WriteTangent(m.Document, a)
	m.Accessors[acc].Type = gltf.AccessorMat4
	m.Accessors[acc].Count /= 4
	m.BufferViews[*m.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func (m *xeToGltf) addBoneNodes(bones []*xexport.Bone) {
	scale := m.Scale
	m.JointNodes = make([]uint32, len(bones))
	for i, b := range bones {
		m.JointNodes[i] = uint32(len(m.Nodes))
		node := &gltf.Node{
			Name:        b.Name,
			Translation: [3]float32{b.LocalPos.X * scale, b.LocalPos.Y * scale, b.LocalPos.Z * scale},
			Rotation:    [4]float32{b.LocalRot.X, b.LocalRot.Y, b.LocalRot.Z, b.LocalRot.W},
			Scale:       [3]float32{b.Scale.X, b.Scale.Y, b.Scale.Z},
		}
		m.Nodes = append(m.Nodes, node)
		if b.Parent >= 0 {
			parent := m.Nodes[m.JointNodes[b.Parent]]
			parent.Children = append(parent.Children, m.JointNodes[i])
		} else {
			m.Scenes[0].Nodes = append(m.Scenes[0].Nodes, m.JointNodes[i])
		}
	}
}

func (m *xeToGltf) addSkin(bones []*xexport.Bone) uint32 {
	scale := m.Scale
	invmats := make([][4][4]float32, len(bones))
	for i, b := range bones {
		inv := b.WorldRot.Inverse()
		mat := geom.NewRotationMatrix4FromQuaternion(inv)
		t := inv.ApplyTo(b.WorldPos.Scale(-scale))
		mat[12], mat[13], mat[14] = t.X, t.Y, t.Z
		invmats[i] = [4][4]float32{
			{mat[0], mat[1], mat[2], mat[3]},
			{mat[4], mat[5], mat[6], mat[7]},
			{mat[8], mat[9], mat[10], mat[11]},
			{mat[12], mat[13], mat[14], mat[15]},
		}
	}
	m.Skins = append(m.Skins, &gltf.Skin{
		Joints:              m.JointNodes,
		InverseBindMatrices: gltf.Index(m.addMatrices(invmats)),
	})
	return uint32(len(m.Skins) - 1)
}

// vertexJoints packs a vertex's weight list into the 4 influences glTF
// allows, dropping the smallest and renormalizing when there are more.
func vertexJoints(weights []xexport.Weight) ([4]uint16, [4]float32) {
	if len(weights) > 4 {
		w := make([]xexport.Weight, len(weights))
		copy(w, weights)
		sort.Slice(w, func(i, j int) bool { return w[i].Value > w[j].Value })
		weights = w[:4]
	}
	var joints [4]uint16
	var values [4]float32
	var sum float32
	for i, w := range weights {
		joints[i] = uint16(w.Bone)
		values[i] = w.Value
		sum += w.Value
	}
	if sum > 0 {
		for i := range values {
			values[i] /= sum
		}
	}
	return joints, values
}

func (m *xeToGltf) convertMesh(mesh *xexport.Mesh, name string, skinned bool) *gltf.Mesh {
	scale := m.Scale
	positions := make([][3]float32, len(mesh.Vertexes))
	normals := make([][3]float32, len(mesh.Vertexes))
	texcood0 := make([][2]float32, len(mesh.Vertexes))
	colors := make([][4]uint8, len(mesh.Vertexes))
	var joints0 [][4]uint16
	var weights0 [][4]float32
	if skinned {
		joints0 = make([][4]uint16, len(mesh.Vertexes))
		weights0 = make([][4]float32, len(mesh.Vertexes))
	}
	for i, v := range mesh.Vertexes {
		positions[i] = [3]float32{v.Pos.X * scale, v.Pos.Y * scale, v.Pos.Z * scale}
		v.Normal.ToArray(normals[i][:])
		texcood0[i] = [2]float32{v.UV.X, v.UV.Y}
		colors[i] = v.Color
		if skinned {
			joints0[i], weights0[i] = vertexJoints(v.Weights)
		}
	}
	indices := make([]uint32, len(mesh.Faces)*3)
	for i, f := range mesh.Faces {
		indices[i*3] = uint32(f.Verts[0])
		indices[i*3+1] = uint32(f.Verts[1])
		indices[i*3+2] = uint32(f.Verts[2])
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(m.Document, positions),
		"NORMAL":     modeler.WriteNormal(m.Document, normals),
		"TEXCOORD_0": modeler.WriteTextureCoord(m.Document, texcood0),
		"COLOR_0":    modeler.WriteColor(m.Document, colors),
	}
	if skinned {
		attributes["JOINTS_0"] = modeler.WriteJoints(m.Document, joints0)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(m.Document, weights0)
	}

	return &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(m.Document, indices)),
			Attributes: attributes,
			Material:   gltf.Index(uint32(mesh.Material)),
		}},
	}
}

func (m *xeToGltf) hasAlpha(texture string, textures *textureCache) bool {
	if texture == "" || strings.HasSuffix(texture, ".jpg") || strings.HasSuffix(texture, ".bmp") {
		return false
	}
	img, err := textures.getImage(texture)
	if err != nil {
		return false
	}
	switch img.ColorModel() {
	case color.YCbCrModel, color.CMYKModel:
		return false
	case color.RGBAModel:
		return !img.(*image.RGBA).Opaque()
	}
	return false
}

func scaleTexture(texture string, mime string, textures *textureCache, scale float32, limit int) (io.Reader, error) {
	img, err := textures.getImage(texture)
	if err != nil {
		return nil, err
	}
	rect := img.Bounds()

	if limit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if sz > limit {
			scale *= float32(limit) / float32(sz)
		}
	}

	if scale != 1.0 {
		dst := image.NewRGBA(image.Rect(0, 0, int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
		img = dst
	}

	w := new(bytes.Buffer)
	if mime == "image/png" {
		err = png.Encode(w, img)
	} else {
		err = jpeg.Encode(w, img, nil)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (m *xeToGltf) addTexture(texture string, textures *textureCache) (*uint32, error) {
	t := textures.get(texture)
	if t.id != nil {
		return t.id, nil
	}
	ext := strings.ToLower(filepath.Ext(texture))

	encode := m.TextureReCompress
	if m.TextureBytesThreshold > 0 {
		stat, err := os.Stat(filepath.Join(textures.srcDir, texture))
		if err != nil {
			return nil, err
		}
		if stat.Size() > m.TextureBytesThreshold {
			encode = true
		}
	}

	var mimeType string
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	} else if ext == ".png" {
		mimeType = "image/png"
	} else {
		mimeType = "image/png"
		encode = true
	}

	var r io.Reader
	if encode {
		r2, err := scaleTexture(texture, mimeType, textures, m.TextureScale, m.TextureResolutionLimit)
		if err != nil {
			return nil, err
		}
		r = r2
	} else {
		f, err := os.Open(filepath.Join(textures.srcDir, texture))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	img, err := modeler.WriteImage(m.Document, filepath.Base(texture), mimeType, r)
	if err != nil {
		return nil, err
	}
	m.Buffers[0].ByteLength = uint32(len(m.Buffers[0].Data)) // avoid AddImage bug
	m.Textures = append(m.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(img)})

	t.id = gltf.Index(uint32(len(m.Textures)) - 1)

	return t.id, nil
}

func (m *xeToGltf) materialTexture(mat *xexport.Material) string {
	if s := m.MaterialSettings[mat.Name]; s != nil && s.Texture != "" {
		return s.Texture
	}
	return mat.Texture
}

func (m *xeToGltf) convertMaterial(mat *xexport.Material, textures *textureCache) *gltf.Material {
	var unlitMaterialExt = "KHR_materials_unlit"
	var rf float32 = 0.9
	var mf float32 = 0
	mm := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			RoughnessFactor: &rf,
			MetallicFactor:  &mf,
		},
	}
	setting := m.MaterialSettings[mat.Name]
	if setting != nil {
		mm.DoubleSided = setting.DoubleSided
	}
	texture := m.materialTexture(mat)
	if m.hasAlpha(texture, textures) {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if m.ForceUnlit || setting != nil && setting.Unlit {
		mm.Extensions = map[string]interface{}{unlitMaterialExt: map[string]string{}}
	}

	if texture != "" {
		if tex, err := m.addTexture(texture, textures); err == nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{
				Index: *tex,
			}
		} else {
			log.Print("Texture read error:", err)
		}
	}
	return mm
}

func (m *xeToGltf) Convert(model *xexport.Model, textureDir string) (*gltf.Document, error) {
	m.addBoneNodes(model.Bones)
	skinned := len(model.Bones) > 0

	var skin *uint32
	if skinned {
		skin = gltf.Index(m.addSkin(model.Bones))
	}

	for _, mesh := range model.Meshes {
		if len(mesh.Faces) == 0 {
			continue
		}
		name := "mesh"
		if mesh.Material < len(model.Materials) {
			name = model.Materials[mesh.Material].Name
		}
		node := &gltf.Node{Name: name}
		node.Mesh = gltf.Index(uint32(len(m.Document.Meshes)))
		m.Document.Meshes = append(m.Document.Meshes, m.convertMesh(mesh, name, skinned))
		node.Skin = skin
		m.Scenes[0].Nodes = append(m.Scenes[0].Nodes, uint32(len(m.Nodes)))
		m.Nodes = append(m.Nodes, node)
	}

	textures := &textureCache{srcDir: textureDir, textures: map[string]*textureInfo{}}
	useUnlit := false
	for _, mat := range model.Materials {
		mm := m.convertMaterial(mat, textures)
		if mm.Extensions["KHR_materials_unlit"] != nil {
			useUnlit = true
		}
		m.Document.Materials = append(m.Document.Materials, mm)
	}
	if useUnlit {
		m.ExtensionsUsed = append(m.ExtensionsUsed, "KHR_materials_unlit")
	}

	if len(m.Document.Textures) > 0 {
		m.Document.Samplers = []*gltf.Sampler{{}}
	}

	return m.Document, nil
}
