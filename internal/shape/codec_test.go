package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRect(t *testing.T) {
	s := &Shape{
		ID:          "s1",
		Type:        TypeRect,
		X:           10,
		Y:           20,
		StrokeColor: "#1e1e1e",
		StrokeWidth: 2,
		FillColor:   "#ffcc00",
		Opacity:     0.8,
		Geom:        &BoxGeometry{Width: 100, Height: 50},
	}

	msg, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, msg, `"type":"rect"`)
	assert.Contains(t, msg, `"width":100`)

	got, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestEncodeDecodeAllVariants(t *testing.T) {
	cases := []*Shape{
		{ID: "d", Type: TypeDiamond, X: 1, Y: 2, StrokeColor: "#000", StrokeWidth: 1, Geom: &BoxGeometry{Width: 30, Height: 40}},
		{ID: "c", Type: TypeCircle, X: 5, Y: 5, StrokeColor: "#000", StrokeWidth: 1, Geom: &CircleGeometry{Radius: 12}},
		{ID: "l", Type: TypeLine, X: 0, Y: 0, StrokeColor: "#000", StrokeWidth: 1, Geom: &LineGeometry{X2: 9, Y2: 9}},
		{ID: "a", Type: TypeArrow, X: 0, Y: 0, StrokeColor: "#000", StrokeWidth: 1, Geom: &LineGeometry{X2: -4, Y2: 7}},
		{ID: "p", Type: TypePencil, X: 1, Y: 1, StrokeColor: "#000", StrokeWidth: 3, Geom: &PencilGeometry{Points: []Point{{X: 1, Y: 1}, {X: 2, Y: 3}}}},
		{ID: "t", Type: TypeText, X: 8, Y: 8, StrokeColor: "#000", StrokeWidth: 1, Geom: &TextGeometry{Content: "hello", FontSize: 16}},
	}
	for _, s := range cases {
		msg, err := Encode(s)
		require.NoError(t, err, "encode %s", s.Type)
		got, err := Decode(msg)
		require.NoError(t, err, "decode %s", s.Type)
		assert.Equal(t, s, got)
	}
}

func TestDecodeMissingGeometry(t *testing.T) {
	cases := map[string]string{
		"rect without width":    `{"id":"1","type":"rect","x":0,"y":0,"height":5}`,
		"circle without radius": `{"id":"1","type":"circle","x":0,"y":0}`,
		"line without x2":       `{"id":"1","type":"line","x":0,"y":0,"y2":5}`,
		"pencil without points": `{"id":"1","type":"pencil","x":0,"y":0}`,
		"text without content":  `{"id":"1","type":"text","x":0,"y":0,"fontSize":16}`,
	}
	for name, msg := range cases {
		_, err := Decode(msg)
		assert.Error(t, err, name)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(`{"id":"1","type":"star","x":0,"y":0}`)
	assert.Error(t, err)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode(`{"id":`)
	assert.Error(t, err)
}

func TestEncodeRejectsMismatchedGeometry(t *testing.T) {
	s := &Shape{ID: "1", Type: TypeCircle, Geom: &BoxGeometry{Width: 1, Height: 1}}
	_, err := Encode(s)
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	s := &Shape{ID: "p", Type: TypePencil, Geom: &PencilGeometry{Points: []Point{{X: 1, Y: 1}}}}
	cp := s.Clone()
	cp.Geom.(*PencilGeometry).Points[0].X = 99
	assert.Equal(t, 1.0, s.Geom.(*PencilGeometry).Points[0].X)
}
