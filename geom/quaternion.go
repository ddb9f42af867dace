package geom

import "math"

type Vector4 struct {
	X Element
	Y Element
	Z Element
	W Element
}

type Quaternion = Vector4

func NewQuaternion(x, y, z, w float32) *Vector4 {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewQuaternionFromArray(arr [4]Element) *Vector4 {
	return &Vector4{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
}

// NewQuaternionFromBasis converts an orthonormal basis to a quaternion.
// x, y, z are the rotated images of the unit axes (the columns of the
// rotation matrix).
func NewQuaternionFromBasis(x, y, z *Vector3) *Quaternion {
	m00, m01, m02 := float64(x.X), float64(y.X), float64(z.X)
	m10, m11, m12 := float64(x.Y), float64(y.Y), float64(z.Y)
	m20, m21, m22 := float64(x.Z), float64(y.Z), float64(z.Z)

	var q Vector4
	trace := m00 + m11 + m22
	if trace > 0 {
		s := math.Sqrt(trace+1) * 2
		q.W = Element(s / 4)
		q.X = Element((m21 - m12) / s)
		q.Y = Element((m02 - m20) / s)
		q.Z = Element((m10 - m01) / s)
	} else if m00 > m11 && m00 > m22 {
		s := math.Sqrt(1+m00-m11-m22) * 2
		q.W = Element((m21 - m12) / s)
		q.X = Element(s / 4)
		q.Y = Element((m01 + m10) / s)
		q.Z = Element((m02 + m20) / s)
	} else if m11 > m22 {
		s := math.Sqrt(1+m11-m00-m22) * 2
		q.W = Element((m02 - m20) / s)
		q.X = Element((m01 + m10) / s)
		q.Y = Element(s / 4)
		q.Z = Element((m12 + m21) / s)
	} else {
		s := math.Sqrt(1+m22-m00-m11) * 2
		q.W = Element((m10 - m01) / s)
		q.X = Element((m02 + m20) / s)
		q.Y = Element((m12 + m21) / s)
		q.Z = Element(s / 4)
	}
	return q.Normalize()
}

func (v *Vector4) Add(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z, W: v.W + v2.W}
}

func (v *Vector4) Sub(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z, W: v.W - v2.W}
}

func (v *Vector4) Dot(v2 *Vector4) Element {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z + v.W*v2.W
}

func (v *Vector4) Len() Element {
	return Element(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W)))
}

func (v *Vector4) LenSqr() Element {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W
}

func (v *Vector4) Normalize() *Vector4 {
	l := v.Len()
	if l > 0 {
		v.X /= l
		v.Y /= l
		v.Z /= l
		v.W /= l
	} else {
		v.W = 1
	}
	return v
}

// Inverse returns the conjugate. Valid as an inverse for unit quaternions.
func (v *Vector4) Inverse() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: v.W}
}

// Returns Hamilton product
func (a *Vector4) Mul(b *Vector4) *Vector4 {
	return &Vector4{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z, // 1
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y, // i
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X, // j
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W, // k
	}
}

// ApplyTo rotates p by the quaternion.
func (v *Vector4) ApplyTo(p *Vector3) *Vector3 {
	u := &Vector3{X: v.X, Y: v.Y, Z: v.Z}
	t := u.Cross(p).Scale(2)
	return p.Add(t.Scale(v.W)).Add(u.Cross(t))
}
