package xexport

import (
	"fmt"

	"github.com/kamoji/xexportconv/geom"
)

type animParser struct {
	c     *Cursor
	model *Model
	anim  *Animation
}

func (p *animParser) parse() (*Animation, error) {
	if err := p.c.Marker("ANIMATION"); err != nil {
		return nil, err
	}
	version, err := p.c.UInt("VERSION")
	if err != nil {
		return nil, err
	}
	p.anim = &Animation{Version: version}

	if err := p.parseParts(); err != nil {
		return nil, err
	}
	if err := p.parseFrames(); err != nil {
		return nil, err
	}
	return p.anim, nil
}

func (p *animParser) parseParts() error {
	numParts, err := p.c.UInt("NUMPARTS")
	if err != nil {
		return err
	}
	for i := 0; i < numParts; i++ {
		index, name, _, err := p.c.IndexedName("PART")
		if err != nil {
			return err
		}
		if index != i {
			return fmt.Errorf("%w: part %d declared at position %d", ErrStructuralMismatch, index, i)
		}
		p.anim.PartNames = append(p.anim.PartNames, name)
		// Parts with no matching bone stay at -1. Their frame data is
		// still read and kept in part order; the mapping is metadata only.
		bone := -1
		if b, ok := p.model.BoneByName(name); ok {
			bone = b
		}
		p.anim.PartBones = append(p.anim.PartBones, bone)
	}
	return nil
}

func (p *animParser) parseFrames() error {
	framerate, err := p.c.UInt("FRAMERATE")
	if err != nil {
		return err
	}
	p.anim.Framerate = framerate
	numFrames, err := p.c.UInt("NUMFRAMES")
	if err != nil {
		return err
	}

	for i := 0; i < numFrames; i++ {
		if _, err := p.c.UInt("FRAME"); err != nil {
			return err
		}
		frame := &Frame{Parts: make([]FramePart, len(p.anim.PartNames))}
		for j := range frame.Parts {
			index, err := p.c.UInt("PART")
			if err != nil {
				return err
			}
			if index != j {
				return fmt.Errorf("%w: frame %d part %d declared at position %d", ErrStructuralMismatch, i, index, j)
			}
			offset, err := p.c.Vector3("OFFSET")
			if err != nil {
				return err
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
			frame.Parts[j] = FramePart{
				Offset:   offset.Scale(InchToCm),
				Rotation: geom.NewQuaternionFromBasis(x, y, z),
			}
		}
		p.anim.Frames = append(p.anim.Frames, frame)
	}
	return nil
}
