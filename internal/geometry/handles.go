package geometry

import (
	"math"

	"collaborative-canvas/internal/shape"
)

// Handle 标识选框上的一个操作手柄。
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleRotate
	HandleMove
)

const (
	// HandleRadius 手柄命中判定的半径（画布像素）。
	HandleRadius = 8.0
	// rotateHandleOffset 旋转手柄悬于选框上边中点上方的距离。
	rotateHandleOffset = 24.0
)

// handleDir 返回缩放手柄的方向向量分量 (-1/0/1)。
func handleDir(h Handle) (sx, sy int) {
	switch h {
	case HandleNW:
		return -1, -1
	case HandleN:
		return 0, -1
	case HandleNE:
		return 1, -1
	case HandleE:
		return 1, 0
	case HandleSE:
		return 1, 1
	case HandleS:
		return 0, 1
	case HandleSW:
		return -1, 1
	case HandleW:
		return -1, 0
	}
	return 0, 0
}

// Handles 返回选框全部手柄的画布坐标：四角与四边的缩放手柄、
// 上方的旋转手柄、中心的移动手柄。
func Handles(b Rect) map[Handle]shape.Point {
	cx, cy := b.X+b.W/2, b.Y+b.H/2
	return map[Handle]shape.Point{
		HandleNW:     {X: b.X, Y: b.Y},
		HandleN:      {X: cx, Y: b.Y},
		HandleNE:     {X: b.X + b.W, Y: b.Y},
		HandleE:      {X: b.X + b.W, Y: cy},
		HandleSE:     {X: b.X + b.W, Y: b.Y + b.H},
		HandleS:      {X: cx, Y: b.Y + b.H},
		HandleSW:     {X: b.X, Y: b.Y + b.H},
		HandleW:      {X: b.X, Y: cy},
		HandleRotate: {X: cx, Y: b.Y - rotateHandleOffset},
		HandleMove:   {X: cx, Y: cy},
	}
}

// HandleAt 返回点命中的手柄，未命中返回 HandleNone。
// 缩放/旋转手柄优先于移动手柄。
func HandleAt(b Rect, p shape.Point) Handle {
	handles := Handles(b)
	order := []Handle{
		HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS,
		HandleSW, HandleW, HandleRotate, HandleMove,
	}
	for _, h := range order {
		hp := handles[h]
		if math.Hypot(p.X-hp.X, p.Y-hp.Y) <= HandleRadius {
			return h
		}
	}
	return HandleNone
}

// DragGesture 把一次移动拖拽的指针轨迹转换成增量平移。
type DragGesture struct {
	last shape.Point
}

// StartDrag 在指针按下时开始移动手势。
func StartDrag(p shape.Point) *DragGesture {
	return &DragGesture{last: p}
}

// Update 按指针当前位置平移图形。
func (g *DragGesture) Update(s *shape.Shape, p shape.Point) {
	ApplyMove(s, p.X-g.last.X, p.Y-g.last.Y)
	g.last = p
}

// ResizeGesture 把一次缩放拖拽的指针轨迹转换成手柄相对增量。
type ResizeGesture struct {
	handle Handle
	last   shape.Point
}

// StartResize 在缩放手柄按下时开始手势。
func StartResize(h Handle, p shape.Point) *ResizeGesture {
	return &ResizeGesture{handle: h, last: p}
}

// Update 按指针当前位置更新图形尺寸。
func (g *ResizeGesture) Update(s *shape.Shape, p shape.Point) {
	ApplyResize(s, g.handle, p.X-g.last.X, p.Y-g.last.Y)
	g.last = p
}

// RotateGesture 记录旋转手势：中心在手势开始时捕获并保持不变，
// 角度取起始向量与当前向量的有向夹角。
type RotateGesture struct {
	center  shape.Point
	start   float64
	applied float64
}

// StartRotate 在旋转手柄按下时开始手势，中心取当前包围盒中心。
func StartRotate(s *shape.Shape, p shape.Point) *RotateGesture {
	c := Bounds(s).Center()
	return &RotateGesture{
		center: c,
		start:  math.Atan2(p.Y-c.Y, p.X-c.X),
	}
}

// Update 按指针当前位置施加旋转增量。
func (g *RotateGesture) Update(s *shape.Shape, p shape.Point) {
	total := math.Atan2(p.Y-g.center.Y, p.X-g.center.X) - g.start
	RotateAbout(s, total-g.applied, g.center)
	g.applied = total
}

// RotateBy 在当前手势中心上直接施加一个角度增量（键盘旋转等场景）。
func (g *RotateGesture) RotateBy(s *shape.Shape, delta float64) {
	RotateAbout(s, delta, g.center)
	g.applied += delta
}
