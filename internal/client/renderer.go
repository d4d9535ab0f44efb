package client

import (
	"image"
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"

	"collaborative-canvas/internal/geometry"
	"collaborative-canvas/internal/shape"
)

// Renderer 把文档快照画成一帧。引擎不依赖具体实现,
// 测试里可以用记录调用的假渲染器替代。
type Renderer interface {
	Render(shapes []*shape.Shape, selectedID string)
}

// Viewport 是画布到屏幕的仿射变换: 先平移后缩放。
type Viewport struct {
	OffsetX float64
	OffsetY float64
	Zoom    float64
}

const arrowHeadLength = 12.0

var canvasBackground = gg.RGB(1, 1, 1)

// CanvasRenderer 基于 gg 的光栅渲染器。
type CanvasRenderer struct {
	dc       *gg.Context
	viewport Viewport
	fontSrc  *text.FontSource
}

func NewCanvasRenderer(width, height int) *CanvasRenderer {
	return &CanvasRenderer{
		dc:       gg.NewContext(width, height),
		viewport: Viewport{Zoom: 1},
	}
}

// SetViewport 更新平移与缩放, Zoom 必须为正。
func (r *CanvasRenderer) SetViewport(v Viewport) {
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	r.viewport = v
}

func (r *CanvasRenderer) Viewport() Viewport { return r.viewport }

// SetFontSource 注入文本渲染的字体。未注入时文本图形只画选框不画字。
func (r *CanvasRenderer) SetFontSource(src *text.FontSource) {
	r.fontSrc = src
}

// Image 返回最近一帧的渲染结果。
func (r *CanvasRenderer) Image() image.Image { return r.dc.Image() }

// Render 画一帧: 清屏, 应用视口变换, 按 z 序画图形, 最后画选区。
func (r *CanvasRenderer) Render(shapes []*shape.Shape, selectedID string) {
	dc := r.dc
	dc.ClearWithColor(canvasBackground)

	dc.Push()
	dc.Scale(r.viewport.Zoom, r.viewport.Zoom)
	dc.Translate(-r.viewport.OffsetX, -r.viewport.OffsetY)

	var selected *shape.Shape
	for _, s := range shapes {
		r.drawShape(s)
		if selectedID != "" && s.ID == selectedID {
			selected = s
		}
	}
	if selected != nil {
		r.drawSelection(selected)
	}

	dc.Pop()
}

func (r *CanvasRenderer) drawShape(s *shape.Shape) {
	dc := r.dc
	dc.Push()
	defer dc.Pop()

	if s.Rotation != 0 {
		c := geometry.RawBounds(s).Center()
		dc.RotateAbout(s.Rotation, c.X, c.Y)
	}

	switch g := s.Geom.(type) {
	case *shape.BoxGeometry:
		if s.Type == shape.TypeDiamond {
			dc.MoveTo(s.X+g.Width/2, s.Y)
			dc.LineTo(s.X+g.Width, s.Y+g.Height/2)
			dc.LineTo(s.X+g.Width/2, s.Y+g.Height)
			dc.LineTo(s.X, s.Y+g.Height/2)
			dc.ClosePath()
		} else {
			dc.DrawRectangle(s.X, s.Y, g.Width, g.Height)
		}
		r.paint(s)
	case *shape.CircleGeometry:
		dc.DrawCircle(s.X, s.Y, g.Radius)
		r.paint(s)
	case *shape.LineGeometry:
		dc.MoveTo(s.X, s.Y)
		dc.LineTo(g.X2, g.Y2)
		r.strokeOnly(s)
		if s.Type == shape.TypeArrow {
			r.drawArrowHead(s, g)
		}
	case *shape.PencilGeometry:
		if len(g.Points) == 0 {
			return
		}
		dc.MoveTo(g.Points[0].X, g.Points[0].Y)
		for _, p := range g.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		r.strokeOnly(s)
	case *shape.TextGeometry:
		r.drawText(s, g)
	}
}

// paint 先填充后描边, 共享当前路径。
func (r *CanvasRenderer) paint(s *shape.Shape) {
	dc := r.dc
	if s.FillColor != "" {
		r.setColor(s.FillColor, s.Opacity)
		_ = dc.FillPreserve()
	}
	r.strokeOnly(s)
}

func (r *CanvasRenderer) strokeOnly(s *shape.Shape) {
	dc := r.dc
	r.setColor(s.StrokeColor, s.Opacity)
	dc.SetLineWidth(s.StrokeWidth)
	_ = dc.Stroke()
}

// drawArrowHead 在终点画两条与主线成 30 度夹角的短边。
func (r *CanvasRenderer) drawArrowHead(s *shape.Shape, g *shape.LineGeometry) {
	dc := r.dc
	angle := math.Atan2(g.Y2-s.Y, g.X2-s.X)
	for _, da := range []float64{math.Pi - math.Pi/6, math.Pi + math.Pi/6} {
		dc.MoveTo(g.X2, g.Y2)
		dc.LineTo(
			g.X2+arrowHeadLength*math.Cos(angle+da),
			g.Y2+arrowHeadLength*math.Sin(angle+da),
		)
	}
	r.setColor(s.StrokeColor, s.Opacity)
	dc.SetLineWidth(s.StrokeWidth)
	_ = dc.Stroke()
}

func (r *CanvasRenderer) drawText(s *shape.Shape, g *shape.TextGeometry) {
	if r.fontSrc == nil || g.Content == "" {
		return
	}
	dc := r.dc
	face := r.fontSrc.Face(g.FontSize)
	dc.SetFont(face)
	r.setColor(s.StrokeColor, s.Opacity)
	// 锚点是文本左上角, DrawString 以基线为准
	dc.DrawStringAnchored(g.Content, s.X, s.Y, 0, 0)
}

// drawSelection 画选区: 虚线包围盒、八个缩放手柄和旋转手柄。
func (r *CanvasRenderer) drawSelection(s *shape.Shape) {
	dc := r.dc
	b := geometry.Bounds(s)

	dc.Push()
	if s.Rotation != 0 {
		c := geometry.RawBounds(s).Center()
		dc.RotateAbout(s.Rotation, c.X, c.Y)
	}

	dc.SetRGBA(0.29, 0.56, 0.89, 1)
	dc.SetLineWidth(1)
	dc.SetDash(4, 4)
	dc.DrawRectangle(b.X, b.Y, b.W, b.H)
	_ = dc.Stroke()
	dc.ClearDash()

	for h, p := range geometry.Handles(b) {
		if h == geometry.HandleRotate {
			dc.DrawCircle(p.X, p.Y, geometry.HandleRadius/2)
		} else {
			half := geometry.HandleRadius / 2
			dc.DrawRectangle(p.X-half, p.Y-half, geometry.HandleRadius, geometry.HandleRadius)
		}
		dc.SetRGBA(1, 1, 1, 1)
		_ = dc.FillPreserve()
		dc.SetRGBA(0.29, 0.56, 0.89, 1)
		_ = dc.Stroke()
	}
	dc.Pop()
}

func (r *CanvasRenderer) setColor(hex string, opacity float64) {
	if hex == "" {
		hex = "#000000"
	}
	col := gg.Hex(hex)
	if opacity > 0 && opacity < 1 {
		col.A *= opacity
	}
	r.dc.SetRGBA(col.R, col.G, col.B, col.A)
}
