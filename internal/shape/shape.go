package shape

import (
	"fmt"
)

// Type 枚举画布支持的所有图形变体。
type Type string

const (
	TypeRect    Type = "rect"
	TypeCircle  Type = "circle"
	TypeLine    Type = "line"
	TypeArrow   Type = "arrow"
	TypeDiamond Type = "diamond"
	TypePencil  Type = "pencil"
	TypeText    Type = "text"
)

// Point 画布坐标系中的一个点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry 是图形变体几何数据的标记接口。
// 每种 Type 对应一个具体的几何结构体，字段对该变体静态保证存在，
// 不会出现 "rect 带 radius" 这类混搭。
type Geometry interface {
	isGeometry()
}

// BoxGeometry 供 rect 和 diamond 使用：以锚点为左上角的宽高。
type BoxGeometry struct {
	Width  float64
	Height float64
}

// CircleGeometry 以锚点为圆心。
type CircleGeometry struct {
	Radius float64
}

// LineGeometry 供 line 和 arrow 使用：锚点为起点，(X2, Y2) 为终点。
type LineGeometry struct {
	X2 float64
	Y2 float64
}

// PencilGeometry 自由手绘路径，按绘制顺序保存所有点（含锚点本身）。
type PencilGeometry struct {
	Points []Point
}

// TextGeometry 文本内容与字号，锚点为文本左上角。
type TextGeometry struct {
	Content  string
	FontSize float64
}

func (BoxGeometry) isGeometry()    {}
func (CircleGeometry) isGeometry() {}
func (LineGeometry) isGeometry()   {}
func (PencilGeometry) isGeometry() {}
func (TextGeometry) isGeometry()   {}

// Shape 是一条画布图形记录：公共属性 + 按 Type 区分的几何数据。
// ID 在客户端创建时是临时 UUID，服务端持久化后被权威 id 取代。
type Shape struct {
	ID          string
	Type        Type
	X           float64
	Y           float64
	StrokeColor string
	StrokeWidth float64
	FillColor   string
	Rotation    float64
	Opacity     float64
	Geom        Geometry
}

// Validate 检查几何数据与 Type 标签是否一致。
func (s *Shape) Validate() error {
	ok := false
	switch s.Type {
	case TypeRect, TypeDiamond:
		_, ok = s.Geom.(*BoxGeometry)
	case TypeCircle:
		_, ok = s.Geom.(*CircleGeometry)
	case TypeLine, TypeArrow:
		_, ok = s.Geom.(*LineGeometry)
	case TypePencil:
		_, ok = s.Geom.(*PencilGeometry)
	case TypeText:
		_, ok = s.Geom.(*TextGeometry)
	default:
		return fmt.Errorf("shape: unknown type %q", s.Type)
	}
	if !ok {
		return fmt.Errorf("shape: geometry does not match type %q", s.Type)
	}
	return nil
}

// Clone 返回 Shape 的深拷贝（变换操作前复制草稿用）。
func (s *Shape) Clone() *Shape {
	cp := *s
	switch g := s.Geom.(type) {
	case *BoxGeometry:
		gc := *g
		cp.Geom = &gc
	case *CircleGeometry:
		gc := *g
		cp.Geom = &gc
	case *LineGeometry:
		gc := *g
		cp.Geom = &gc
	case *PencilGeometry:
		gc := PencilGeometry{Points: make([]Point, len(g.Points))}
		copy(gc.Points, g.Points)
		cp.Geom = &gc
	case *TextGeometry:
		gc := *g
		cp.Geom = &gc
	}
	return &cp
}
