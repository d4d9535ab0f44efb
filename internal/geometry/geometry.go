// Package geometry 实现选区与变换子系统：包围盒、手柄、命中测试，
// 以及移动/缩放/旋转的几何更新。全部是纯几何计算，不触碰持久化。
package geometry

import (
	"math"

	"collaborative-canvas/internal/shape"
)

// Rect 轴对齐矩形（画布坐标系）。
type Rect struct {
	X, Y, W, H float64
}

// Center 返回矩形中心点。
func (r Rect) Center() shape.Point {
	return shape.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains 判断点是否落在矩形内（闭区间）。
func (r Rect) Contains(p shape.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Expand 返回四边各外扩 pad 后的矩形。
func (r Rect) Expand(pad float64) Rect {
	return Rect{X: r.X - pad, Y: r.Y - pad, W: r.W + 2*pad, H: r.H + 2*pad}
}

// MeasureText 估算文本的像素尺寸。默认实现按字号近似，
// 渲染端加载了真实字体后可以替换成精确测量。
var MeasureText = func(content string, fontSize float64) (w, h float64) {
	return float64(len([]rune(content))) * fontSize * 0.6, fontSize * 1.2
}

// transformer 是按图形变体分发的几何操作接口。
// 公共入口 (Bounds/HitTest/ApplyMove/ApplyResize) 通过 transformers
// 分发表路由到具体实现，避免大段的类型条件链。
type transformer interface {
	bounds(s *shape.Shape) Rect
	hit(s *shape.Shape, p shape.Point, tol float64) bool
	move(s *shape.Shape, dx, dy float64)
	resize(s *shape.Shape, h Handle, dx, dy float64)
}

var transformers = map[shape.Type]transformer{
	shape.TypeRect:    boxTransformer{},
	shape.TypeDiamond: boxTransformer{},
	shape.TypeCircle:  circleTransformer{},
	shape.TypeLine:    lineTransformer{},
	shape.TypeArrow:   lineTransformer{},
	shape.TypePencil:  pencilTransformer{},
	shape.TypeText:    textTransformer{},
}

// 包围盒的选框边距，按变体取值。
func boundsPad(t shape.Type) float64 {
	if t == shape.TypeText {
		return 4
	}
	return 8
}

// Bounds 返回带选框边距的包围盒。
func Bounds(s *shape.Shape) Rect {
	return RawBounds(s).Expand(boundsPad(s.Type))
}

// RawBounds 返回不含边距的几何包围盒。
func RawBounds(s *shape.Shape) Rect {
	return transformers[s.Type].bounds(s)
}

// HitTest 判断点是否命中图形，tol 是线类图形的像素容差。
func HitTest(s *shape.Shape, p shape.Point, tol float64) bool {
	return transformers[s.Type].hit(s, p, tol)
}

// ApplyMove 平移图形的全部位置字段（含手绘路径点和线段两端）。
func ApplyMove(s *shape.Shape, dx, dy float64) {
	transformers[s.Type].move(s, dx, dy)
}

// ApplyResize 按手柄方向更新几何尺寸，宽高/半径收敛到非负。
func ApplyResize(s *shape.Shape, h Handle, dx, dy float64) {
	transformers[s.Type].resize(s, h, dx, dy)
}

// RotateAbout 施加一个旋转增量。矩形、菱形、圆和文本把增量累加进
// Rotation，渲染时绕自身包围盒中心旋转，锚点不动，因此成对的
// 正负旋转精确互逆。线段和手绘路径没有独立的 Rotation 渲染，
// 直接把所有点绕 center 旋转。
func RotateAbout(s *shape.Shape, delta float64, center shape.Point) {
	switch g := s.Geom.(type) {
	case *shape.LineGeometry:
		s.X, s.Y = rotatePoint(s.X, s.Y, delta, center)
		g.X2, g.Y2 = rotatePoint(g.X2, g.Y2, delta, center)
	case *shape.PencilGeometry:
		s.X, s.Y = rotatePoint(s.X, s.Y, delta, center)
		for i := range g.Points {
			g.Points[i].X, g.Points[i].Y = rotatePoint(g.Points[i].X, g.Points[i].Y, delta, center)
		}
	default:
		s.Rotation += delta
	}
}

// RotatePoint 把点绕 c 旋转 angle 弧度。带 Rotation 的图形在屏幕坐标
// 和未旋转的几何坐标之间换算时使用。
func RotatePoint(p shape.Point, angle float64, c shape.Point) shape.Point {
	x, y := rotatePoint(p.X, p.Y, angle, c)
	return shape.Point{X: x, Y: y}
}

func rotatePoint(x, y, angle float64, c shape.Point) (float64, float64) {
	sin, cos := math.Sincos(angle)
	dx, dy := x-c.X, y-c.Y
	return c.X + dx*cos - dy*sin, c.Y + dx*sin + dy*cos
}

// --- 各变体实现 ---

type boxTransformer struct{}

func (boxTransformer) bounds(s *shape.Shape) Rect {
	g := s.Geom.(*shape.BoxGeometry)
	return normalized(s.X, s.Y, g.Width, g.Height)
}

func (boxTransformer) hit(s *shape.Shape, p shape.Point, _ float64) bool {
	return boxTransformer{}.bounds(s).Contains(p)
}

func (boxTransformer) move(s *shape.Shape, dx, dy float64) {
	s.X += dx
	s.Y += dy
}

func (boxTransformer) resize(s *shape.Shape, h Handle, dx, dy float64) {
	g := s.Geom.(*shape.BoxGeometry)
	sx, sy := handleDir(h)
	if sx > 0 {
		g.Width += dx
	} else if sx < 0 {
		s.X += dx
		g.Width -= dx
	}
	if sy > 0 {
		g.Height += dy
	} else if sy < 0 {
		s.Y += dy
		g.Height -= dy
	}
	g.Width = math.Max(0, g.Width)
	g.Height = math.Max(0, g.Height)
}

type circleTransformer struct{}

func (circleTransformer) bounds(s *shape.Shape) Rect {
	g := s.Geom.(*shape.CircleGeometry)
	return Rect{X: s.X - g.Radius, Y: s.Y - g.Radius, W: 2 * g.Radius, H: 2 * g.Radius}
}

func (circleTransformer) hit(s *shape.Shape, p shape.Point, tol float64) bool {
	g := s.Geom.(*shape.CircleGeometry)
	return math.Hypot(p.X-s.X, p.Y-s.Y) <= g.Radius+tol
}

func (circleTransformer) move(s *shape.Shape, dx, dy float64) {
	s.X += dx
	s.Y += dy
}

func (circleTransformer) resize(s *shape.Shape, h Handle, dx, dy float64) {
	g := s.Geom.(*shape.CircleGeometry)
	sx, sy := handleDir(h)
	delta := float64(sx)*dx + float64(sy)*dy
	if sx != 0 && sy != 0 {
		delta /= 2
	}
	g.Radius = math.Max(0, g.Radius+delta)
}

type lineTransformer struct{}

func (lineTransformer) bounds(s *shape.Shape) Rect {
	g := s.Geom.(*shape.LineGeometry)
	return normalized(s.X, s.Y, g.X2-s.X, g.Y2-s.Y)
}

func (lineTransformer) hit(s *shape.Shape, p shape.Point, tol float64) bool {
	g := s.Geom.(*shape.LineGeometry)
	return segmentDistance(p, shape.Point{X: s.X, Y: s.Y}, shape.Point{X: g.X2, Y: g.Y2}) <= tol
}

func (lineTransformer) move(s *shape.Shape, dx, dy float64) {
	g := s.Geom.(*shape.LineGeometry)
	s.X += dx
	s.Y += dy
	g.X2 += dx
	g.Y2 += dy
}

func (lineTransformer) resize(s *shape.Shape, h Handle, dx, dy float64) {
	g := s.Geom.(*shape.LineGeometry)
	// 西北侧手柄拖动起点，其余拖动终点
	sx, sy := handleDir(h)
	if sx < 0 || (sx == 0 && sy < 0) {
		s.X += dx
		s.Y += dy
	} else {
		g.X2 += dx
		g.Y2 += dy
	}
}

type pencilTransformer struct{}

func (pencilTransformer) bounds(s *shape.Shape) Rect {
	g := s.Geom.(*shape.PencilGeometry)
	minX, minY := s.X, s.Y
	maxX, maxY := s.X, s.Y
	for _, p := range g.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func (pencilTransformer) hit(s *shape.Shape, p shape.Point, tol float64) bool {
	g := s.Geom.(*shape.PencilGeometry)
	for i := 0; i+1 < len(g.Points); i++ {
		if segmentDistance(p, g.Points[i], g.Points[i+1]) <= tol {
			return true
		}
	}
	// 单点路径退化为点命中
	if len(g.Points) == 1 {
		return math.Hypot(p.X-g.Points[0].X, p.Y-g.Points[0].Y) <= tol
	}
	return false
}

func (pencilTransformer) move(s *shape.Shape, dx, dy float64) {
	g := s.Geom.(*shape.PencilGeometry)
	s.X += dx
	s.Y += dy
	for i := range g.Points {
		g.Points[i].X += dx
		g.Points[i].Y += dy
	}
}

func (pencilTransformer) resize(s *shape.Shape, h Handle, dx, dy float64) {
	g := s.Geom.(*shape.PencilGeometry)
	b := pencilTransformer{}.bounds(s)
	if b.W <= 0 || b.H <= 0 {
		return
	}
	sx, sy := handleDir(h)
	scaleX := math.Max(0, b.W+float64(sx)*dx) / b.W
	scaleY := math.Max(0, b.H+float64(sy)*dy) / b.H
	// 以手柄对角为缩放原点
	originX, originY := b.X, b.Y
	if sx < 0 {
		originX = b.X + b.W
	}
	if sy < 0 {
		originY = b.Y + b.H
	}
	if sx == 0 {
		scaleX = 1
	}
	if sy == 0 {
		scaleY = 1
	}
	for i := range g.Points {
		g.Points[i].X = originX + (g.Points[i].X-originX)*scaleX
		g.Points[i].Y = originY + (g.Points[i].Y-originY)*scaleY
	}
	s.X = originX + (s.X-originX)*scaleX
	s.Y = originY + (s.Y-originY)*scaleY
}

type textTransformer struct{}

func (textTransformer) bounds(s *shape.Shape) Rect {
	g := s.Geom.(*shape.TextGeometry)
	w, h := MeasureText(g.Content, g.FontSize)
	return Rect{X: s.X, Y: s.Y, W: w, H: h}
}

func (textTransformer) hit(s *shape.Shape, p shape.Point, _ float64) bool {
	return textTransformer{}.bounds(s).Contains(p)
}

func (textTransformer) move(s *shape.Shape, dx, dy float64) {
	s.X += dx
	s.Y += dy
}

func (textTransformer) resize(s *shape.Shape, h Handle, dx, dy float64) {
	g := s.Geom.(*shape.TextGeometry)
	_, sy := handleDir(h)
	g.FontSize = math.Max(1, g.FontSize+float64(sy)*dy)
}

// --- 辅助函数 ---

// normalized 把可能为负的宽高归一化成左上角 + 非负宽高。
func normalized(x, y, w, h float64) Rect {
	if w < 0 {
		x += w
		w = -w
	}
	if h < 0 {
		y += h
		h = -h
	}
	return Rect{X: x, Y: y, W: w, H: h}
}

// segmentDistance 点到线段的垂直距离。
func segmentDistance(p, a, b shape.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return math.Hypot(apx, apy)
	}
	t := (apx*abx + apy*aby) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*abx), p.Y-(a.Y+t*aby))
}
