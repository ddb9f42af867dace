package xexport

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kamoji/xexportconv/geom"
)

func animFixture() string {
	var b strings.Builder
	b.WriteString("ANIMATION\nVERSION 3\n")
	b.WriteString("NUMPARTS 2\nPART 0 \"ROOT\"\nPART 1 \"Detached\"\n")
	b.WriteString("FRAMERATE 30\nNUMFRAMES 2\n")
	for f := 0; f < 2; f++ {
		fmt.Fprintf(&b, "FRAME %d\n", f)
		b.WriteString("PART 0\nOFFSET 0.0, 0.0, 0.0\n" + identityBasis)
		b.WriteString("PART 1\nOFFSET 1.0, 2.0, 3.0\n" + identityBasis)
	}
	return b.String()
}

func animSkeleton(t *testing.T) *Model {
	t.Helper()
	model, err := ParseModel(strings.NewReader(twoBoneSkeleton(identityBasis)))
	if err != nil {
		t.Fatal(err)
	}
	return model
}

func TestParseAnimation(t *testing.T) {
	anim, err := ParseAnimation(strings.NewReader(animFixture()), animSkeleton(t))
	if err != nil {
		t.Fatal(err)
	}
	if anim.Framerate != 30 || len(anim.Frames) != 2 {
		t.Fatalf("framerate=%d frames=%d", anim.Framerate, len(anim.Frames))
	}
	// "ROOT" matches bone "Root" case-insensitively; "Detached" matches
	// nothing and stays unmapped but keeps its frame data.
	if len(anim.PartBones) != 2 || anim.PartBones[0] != 0 || anim.PartBones[1] != -1 {
		t.Error("part mapping: ", anim.PartBones)
	}
	p := anim.Frames[0].Parts[1]
	if p.Offset.X != 1*2.54 || p.Offset.Y != 2*2.54 || p.Offset.Z != 3*2.54 {
		t.Error("frame offset: ", p.Offset)
	}
	if p.Rotation.Sub(geom.NewQuaternion(0, 0, 0, 1)).Len() > 1e-6 {
		t.Error("frame rotation: ", p.Rotation)
	}
}

func TestParseAnimation_MissingSkeleton(t *testing.T) {
	if _, err := ParseAnimation(strings.NewReader(animFixture()), nil); !errors.Is(err, ErrMissingDependency) {
		t.Error("nil model: ", err)
	}
	if _, err := ParseAnimation(strings.NewReader(animFixture()), &Model{}); !errors.Is(err, ErrMissingDependency) {
		t.Error("empty skeleton: ", err)
	}
}

func TestParseAnimation_Errors(t *testing.T) {
	skeleton := animSkeleton(t)

	partOutOfOrder := "ANIMATION\nVERSION 3\nNUMPARTS 2\nPART 1 \"ROOT\"\n"
	if _, err := ParseAnimation(strings.NewReader(partOutOfOrder), skeleton); !errors.Is(err, ErrStructuralMismatch) {
		t.Error("part order: ", err)
	}

	framePartOutOfOrder := "ANIMATION\nVERSION 3\nNUMPARTS 1\nPART 0 \"ROOT\"\n" +
		"FRAMERATE 30\nNUMFRAMES 1\nFRAME 0\nPART 1\n"
	if _, err := ParseAnimation(strings.NewReader(framePartOutOfOrder), skeleton); !errors.Is(err, ErrStructuralMismatch) {
		t.Error("frame part order: ", err)
	}

	modelHeader := "MODEL\nVERSION 6\n"
	if _, err := ParseAnimation(strings.NewReader(modelHeader), skeleton); !errors.Is(err, ErrUnexpectedToken) {
		t.Error("wrong header: ", err)
	}
}
