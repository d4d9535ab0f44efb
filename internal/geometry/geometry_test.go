package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/shape"
)

func rect(x, y, w, h float64) *shape.Shape {
	return &shape.Shape{ID: "r", Type: shape.TypeRect, X: x, Y: y, Geom: &shape.BoxGeometry{Width: w, Height: h}}
}

func TestRawBounds(t *testing.T) {
	cases := []struct {
		name string
		s    *shape.Shape
		want Rect
	}{
		{"rect", rect(10, 20, 100, 50), Rect{X: 10, Y: 20, W: 100, H: 50}},
		{
			"circle",
			&shape.Shape{Type: shape.TypeCircle, X: 50, Y: 50, Geom: &shape.CircleGeometry{Radius: 10}},
			Rect{X: 40, Y: 40, W: 20, H: 20},
		},
		{
			"line normalizes endpoints",
			&shape.Shape{Type: shape.TypeLine, X: 30, Y: 40, Geom: &shape.LineGeometry{X2: 10, Y2: 20}},
			Rect{X: 10, Y: 20, W: 20, H: 20},
		},
		{
			"pencil spans all points",
			&shape.Shape{Type: shape.TypePencil, X: 5, Y: 5, Geom: &shape.PencilGeometry{
				Points: []shape.Point{{X: 5, Y: 5}, {X: 1, Y: 9}, {X: 7, Y: 2}},
			}},
			Rect{X: 1, Y: 2, W: 6, H: 7},
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RawBounds(tc.s), tc.name)
	}
}

func TestHitTest(t *testing.T) {
	cases := []struct {
		name string
		s    *shape.Shape
		p    shape.Point
		hit  bool
	}{
		{"inside rect", rect(0, 0, 10, 10), shape.Point{X: 5, Y: 5}, true},
		{"outside rect", rect(0, 0, 10, 10), shape.Point{X: 15, Y: 5}, false},
		{
			"inside circle",
			&shape.Shape{Type: shape.TypeCircle, X: 0, Y: 0, Geom: &shape.CircleGeometry{Radius: 10}},
			shape.Point{X: 6, Y: 6}, true,
		},
		{
			"near line within tolerance",
			&shape.Shape{Type: shape.TypeLine, X: 0, Y: 0, Geom: &shape.LineGeometry{X2: 100, Y2: 0}},
			shape.Point{X: 50, Y: 4}, true,
		},
		{
			"far from line",
			&shape.Shape{Type: shape.TypeLine, X: 0, Y: 0, Geom: &shape.LineGeometry{X2: 100, Y2: 0}},
			shape.Point{X: 50, Y: 30}, false,
		},
		{
			"near pencil segment",
			&shape.Shape{Type: shape.TypePencil, X: 0, Y: 0, Geom: &shape.PencilGeometry{
				Points: []shape.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 0}},
			}},
			shape.Point{X: 5, Y: 7}, true,
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.hit, HitTest(tc.s, tc.p, 6), tc.name)
	}
}

func TestApplyMoveLine(t *testing.T) {
	s := &shape.Shape{Type: shape.TypeLine, X: 1, Y: 2, Geom: &shape.LineGeometry{X2: 3, Y2: 4}}
	ApplyMove(s, 10, 20)
	assert.Equal(t, 11.0, s.X)
	assert.Equal(t, 22.0, s.Y)
	g := s.Geom.(*shape.LineGeometry)
	assert.Equal(t, 13.0, g.X2)
	assert.Equal(t, 24.0, g.Y2)
}

func TestApplyResizeClampsToZero(t *testing.T) {
	s := rect(0, 0, 10, 10)
	// 从东南角向左上方拖过原点, 宽高收敛到 0 而不是翻负
	ApplyResize(s, HandleSE, -50, -50)
	g := s.Geom.(*shape.BoxGeometry)
	assert.Equal(t, 0.0, g.Width)
	assert.Equal(t, 0.0, g.Height)
}

func TestApplyResizeNorthWestMovesAnchor(t *testing.T) {
	s := rect(10, 10, 20, 20)
	ApplyResize(s, HandleNW, -5, -5)
	g := s.Geom.(*shape.BoxGeometry)
	assert.Equal(t, 5.0, s.X)
	assert.Equal(t, 5.0, s.Y)
	assert.Equal(t, 25.0, g.Width)
	assert.Equal(t, 25.0, g.Height)
}

func TestRotatePairRestoresBox(t *testing.T) {
	s := rect(10, 20, 100, 40)
	center := Bounds(s).Center()
	RotateAbout(s, math.Pi/2, center)
	RotateAbout(s, -math.Pi/2, Bounds(s).Center())

	assert.InDelta(t, 10, s.X, 1e-9)
	assert.InDelta(t, 20, s.Y, 1e-9)
	assert.InDelta(t, 0, s.Rotation, 1e-9)
}

func TestRotatePairRestoresLine(t *testing.T) {
	s := &shape.Shape{Type: shape.TypeLine, X: 0, Y: 0, Geom: &shape.LineGeometry{X2: 100, Y2: 40}}
	RotateAbout(s, math.Pi/2, Bounds(s).Center())
	RotateAbout(s, -math.Pi/2, Bounds(s).Center())

	g := s.Geom.(*shape.LineGeometry)
	assert.InDelta(t, 0, s.X, 1e-9)
	assert.InDelta(t, 0, s.Y, 1e-9)
	assert.InDelta(t, 100, g.X2, 1e-9)
	assert.InDelta(t, 40, g.Y2, 1e-9)
}

func TestHandleAt(t *testing.T) {
	b := Rect{X: 0, Y: 0, W: 100, H: 100}

	assert.Equal(t, HandleNW, HandleAt(b, shape.Point{X: 0, Y: 0}))
	assert.Equal(t, HandleSE, HandleAt(b, shape.Point{X: 100, Y: 100}))
	assert.Equal(t, HandleN, HandleAt(b, shape.Point{X: 50, Y: 2}))
	assert.Equal(t, HandleMove, HandleAt(b, shape.Point{X: 50, Y: 50}))
	assert.Equal(t, HandleNone, HandleAt(b, shape.Point{X: 30, Y: 70}))

	rotate := Handles(b)[HandleRotate]
	assert.Equal(t, HandleRotate, HandleAt(b, rotate))
}

func TestRotateGestureFollowsPointer(t *testing.T) {
	s := rect(0, 0, 100, 100)
	c := Bounds(s).Center()

	// 从中心正右方开始, 拖到正下方等于旋转 90 度
	g := StartRotate(s, shape.Point{X: c.X + 60, Y: c.Y})
	g.Update(s, shape.Point{X: c.X, Y: c.Y + 60})
	require.InDelta(t, math.Pi/2, s.Rotation, 1e-9)

	// 拖回起始向量, 旋转归零
	g.Update(s, shape.Point{X: c.X + 60, Y: c.Y})
	assert.InDelta(t, 0, s.Rotation, 1e-9)
}

func TestDragGesture(t *testing.T) {
	s := rect(0, 0, 10, 10)
	g := StartDrag(shape.Point{X: 5, Y: 5})
	g.Update(s, shape.Point{X: 15, Y: 25})
	assert.Equal(t, 10.0, s.X)
	assert.Equal(t, 20.0, s.Y)
	g.Update(s, shape.Point{X: 16, Y: 26})
	assert.Equal(t, 11.0, s.X)
	assert.Equal(t, 21.0, s.Y)
}
