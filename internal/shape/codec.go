package shape

import (
	"encoding/json"
	"fmt"
)

// wireShape 是 Shape 的线上表示：一个扁平的 JSON 对象，
// 几何字段按 type 标签选择性出现。指针用于区分 "缺失" 和 "零值"。
type wireShape struct {
	ID          string  `json:"id"`
	Type        Type    `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	FillColor   string  `json:"fillColor,omitempty"`
	Rotation    float64 `json:"rotation,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`

	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Radius   *float64 `json:"radius,omitempty"`
	X2       *float64 `json:"x2,omitempty"`
	Y2       *float64 `json:"y2,omitempty"`
	Points   []Point  `json:"points,omitempty"`
	Content  *string  `json:"content,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// Encode 将 Shape 序列化成线上 JSON 字符串。
// 注意：协议约定 payload.message 本身是 JSON 字符串（双重编码），
// 所以这里返回 string 而不是 []byte。
func Encode(s *Shape) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	w := wireShape{
		ID:          s.ID,
		Type:        s.Type,
		X:           s.X,
		Y:           s.Y,
		StrokeColor: s.StrokeColor,
		StrokeWidth: s.StrokeWidth,
		FillColor:   s.FillColor,
		Rotation:    s.Rotation,
		Opacity:     s.Opacity,
	}
	switch g := s.Geom.(type) {
	case *BoxGeometry:
		w.Width, w.Height = &g.Width, &g.Height
	case *CircleGeometry:
		w.Radius = &g.Radius
	case *LineGeometry:
		w.X2, w.Y2 = &g.X2, &g.Y2
	case *PencilGeometry:
		w.Points = g.Points
	case *TextGeometry:
		w.Content, w.FontSize = &g.Content, &g.FontSize
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("shape: encode %q: %w", s.Type, err)
	}
	return string(data), nil
}

// Decode 解析线上 JSON 并校验几何字段与 type 标签匹配。
// 缺少该变体必需的几何字段视为协议错误。
func Decode(message string) (*Shape, error) {
	var w wireShape
	if err := json.Unmarshal([]byte(message), &w); err != nil {
		return nil, fmt.Errorf("shape: decode: %w", err)
	}
	s := &Shape{
		ID:          w.ID,
		Type:        w.Type,
		X:           w.X,
		Y:           w.Y,
		StrokeColor: w.StrokeColor,
		StrokeWidth: w.StrokeWidth,
		FillColor:   w.FillColor,
		Rotation:    w.Rotation,
		Opacity:     w.Opacity,
	}
	switch w.Type {
	case TypeRect, TypeDiamond:
		if w.Width == nil || w.Height == nil {
			return nil, fmt.Errorf("shape: %q missing width/height", w.Type)
		}
		s.Geom = &BoxGeometry{Width: *w.Width, Height: *w.Height}
	case TypeCircle:
		if w.Radius == nil {
			return nil, fmt.Errorf("shape: circle missing radius")
		}
		s.Geom = &CircleGeometry{Radius: *w.Radius}
	case TypeLine, TypeArrow:
		if w.X2 == nil || w.Y2 == nil {
			return nil, fmt.Errorf("shape: %q missing x2/y2", w.Type)
		}
		s.Geom = &LineGeometry{X2: *w.X2, Y2: *w.Y2}
	case TypePencil:
		if len(w.Points) == 0 {
			return nil, fmt.Errorf("shape: pencil missing points")
		}
		s.Geom = &PencilGeometry{Points: w.Points}
	case TypeText:
		if w.Content == nil || w.FontSize == nil {
			return nil, fmt.Errorf("shape: text missing content/fontSize")
		}
		s.Geom = &TextGeometry{Content: *w.Content, FontSize: *w.FontSize}
	default:
		return nil, fmt.Errorf("shape: unknown type %q", w.Type)
	}
	return s, nil
}
