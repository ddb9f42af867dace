package xexport

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kamoji/xexportconv/geom"
)

// Cursor is a one-pass reader over the token stream with typed, fallible
// requests. A single token of pushback supports the optional records in the
// grammar (SCALE, NUMCOSMETICBONES); the stream is never rewound further.
type Cursor struct {
	lex  *lexer
	held *Token
}

func newCursor(r io.Reader) *Cursor {
	return &Cursor{lex: newLexer(r)}
}

func (c *Cursor) next() (*Token, error) {
	if t := c.held; t != nil {
		c.held = nil
		return t, nil
	}
	return c.lex.Next()
}

func (c *Cursor) unread(t *Token) {
	c.held = t
}

func (c *Cursor) request(name string, args int) (*Token, error) {
	t, err := c.next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: want %s, got end of stream", ErrUnexpectedToken, name)
	} else if err != nil {
		return nil, err
	}
	if t.Name != name {
		return nil, fmt.Errorf("%w: want %s, got %s (line %d)", ErrUnexpectedToken, name, t.Name, t.Line)
	}
	if len(t.Args) < args {
		return nil, fmt.Errorf("%w: %s wants %d values, got %d (line %d)", ErrUnexpectedToken, name, args, len(t.Args), t.Line)
	}
	return t, nil
}

func (t *Token) uintArg(i int) (int, error) {
	n, err := strconv.ParseUint(t.Args[i], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an unsigned integer (line %d)", ErrUnexpectedToken, t.Name, t.Args[i], t.Line)
	}
	return int(n), nil
}

func (t *Token) intArg(i int) (int, error) {
	n, err := strconv.Atoi(t.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer (line %d)", ErrUnexpectedToken, t.Name, t.Args[i], t.Line)
	}
	return n, nil
}

func (t *Token) floatArg(i int) (float32, error) {
	n, err := strconv.ParseFloat(t.Args[i], 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number (line %d)", ErrUnexpectedToken, t.Name, t.Args[i], t.Line)
	}
	return float32(n), nil
}

// Marker consumes a bare token with the given name.
func (c *Cursor) Marker(name string) error {
	_, err := c.request(name, 0)
	return err
}

// UInt consumes "NAME n".
func (c *Cursor) UInt(name string) (int, error) {
	t, err := c.request(name, 1)
	if err != nil {
		return 0, err
	}
	return t.uintArg(0)
}

// Vector3 consumes "NAME x, y, z".
func (c *Cursor) Vector3(name string) (*geom.Vector3, error) {
	t, err := c.request(name, 3)
	if err != nil {
		return nil, err
	}
	var v [3]float32
	for i := range v {
		if v[i], err = t.floatArg(i); err != nil {
			return nil, err
		}
	}
	return geom.NewVector3FromArray(v), nil
}

// Vector4 consumes "NAME x, y, z, w".
func (c *Cursor) Vector4(name string) (*geom.Vector4, error) {
	t, err := c.request(name, 4)
	if err != nil {
		return nil, err
	}
	var v [4]float32
	for i := range v {
		if v[i], err = t.floatArg(i); err != nil {
			return nil, err
		}
	}
	return geom.NewQuaternionFromArray(v), nil
}

// UV consumes "UV layer u v". Only one UV layer is supported by the format
// pairing; a layer count other than 1 is rejected.
func (c *Cursor) UV(name string) (*geom.Vector2, error) {
	t, err := c.request(name, 3)
	if err != nil {
		return nil, err
	}
	layers, err := t.uintArg(0)
	if err != nil {
		return nil, err
	}
	if layers != 1 {
		return nil, fmt.Errorf("%w: %s: unsupported uv layer count %d (line %d)", ErrUnexpectedToken, name, layers, t.Line)
	}
	u, err := t.floatArg(1)
	if err != nil {
		return nil, err
	}
	v, err := t.floatArg(2)
	if err != nil {
		return nil, err
	}
	return geom.NewVector2(u, v), nil
}

// BoneDef consumes a skeleton table entry "BONE index parent "name"".
func (c *Cursor) BoneDef(name string) (index, parent int, boneName string, err error) {
	t, err := c.request(name, 3)
	if err != nil {
		return 0, 0, "", err
	}
	if index, err = t.uintArg(0); err != nil {
		return 0, 0, "", err
	}
	if parent, err = t.intArg(1); err != nil {
		return 0, 0, "", err
	}
	return index, parent, t.Args[2], nil
}

// IndexedName consumes "NAME index "name"" (PART and MATERIAL headers).
func (c *Cursor) IndexedName(name string) (int, string, *Token, error) {
	t, err := c.request(name, 2)
	if err != nil {
		return 0, "", nil, err
	}
	index, err := t.uintArg(0)
	if err != nil {
		return 0, "", nil, err
	}
	return index, t.Args[1], t, nil
}

// BoneWeight consumes a vertex influence "BONE index weight".
func (c *Cursor) BoneWeight(name string) (int, float32, error) {
	t, err := c.request(name, 2)
	if err != nil {
		return 0, 0, err
	}
	index, err := t.uintArg(0)
	if err != nil {
		return 0, 0, err
	}
	w, err := t.floatArg(1)
	if err != nil {
		return 0, 0, err
	}
	return index, w, nil
}

// Skip consumes and discards n tokens. Used for the trailing material
// shading parameters that keep the stream aligned but are not modeled.
func (c *Cursor) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := c.next(); err == io.EOF {
			return fmt.Errorf("%w: end of stream while skipping parameters", ErrUnexpectedToken)
		} else if err != nil {
			return err
		}
	}
	return nil
}
