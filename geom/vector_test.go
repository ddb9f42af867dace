package geom

import "testing"

func TestVector2(t *testing.T) {
	v := NewVector2(3, 4)
	if v.Len() != 5 {
		t.Error("Len: ", v.Len())
	}
	if v.Dot(NewVector2(1, 1)) != 7 {
		t.Error("Dot: ", v.Dot(NewVector2(1, 1)))
	}
}

func TestVector3(t *testing.T) {
	const eps = 0.000001

	v := NewVector3(1, 2, 3)
	if v.Add(NewVector3(1, 1, 1)).Sub(NewVector3(2, 3, 4)).Len() > eps {
		t.Error("Add/Sub")
	}
	if v.Scale(2).Sub(NewVector3(2, 4, 6)).Len() > eps {
		t.Error("Scale")
	}
	c := NewVector3(1, 0, 0).Cross(NewVector3(0, 1, 0))
	if c.Sub(NewVector3(0, 0, 1)).Len() > eps {
		t.Error("Cross: ", c)
	}
	n := NewVector3(0, 10, 0).Normalize()
	if n.Sub(NewVector3(0, 1, 0)).Len() > eps {
		t.Error("Normalize: ", n)
	}
}

func TestMatrix4(t *testing.T) {
	const eps = 0.000001

	m := NewTranslateMatrix4(1, 2, 3)
	v := m.ApplyTo(NewVector3(0, 0, 0))
	if v.Sub(NewVector3(1, 2, 3)).Len() > eps {
		t.Error("Translate: ", v)
	}

	s := NewScaleMatrix4(2, 2, 2)
	v = s.ApplyTo(NewVector3(1, 2, 3))
	if v.Sub(NewVector3(2, 4, 6)).Len() > eps {
		t.Error("Scale: ", v)
	}
}
