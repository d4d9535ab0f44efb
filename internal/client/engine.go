// Package client 实现画布客户端的同步核心: 工具状态机、本地文档
// 与远端事件的合流。渲染和传输通过接口注入, 引擎本身不碰网络与像素。
package client

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/geometry"
	"collaborative-canvas/internal/shape"
)

// Tool 枚举工具栏里可选的工具。
type Tool int

const (
	ToolSelect Tool = iota
	ToolRect
	ToolDiamond
	ToolCircle
	ToolLine
	ToolArrow
	ToolPencil
	ToolText
	ToolEraser
)

// State 是指针交互状态机的状态。
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateTransforming
	StateErasing
	StateEditingText
)

// hitTolerance 线段与手绘路径命中判定的容差, 画布坐标系单位
const hitTolerance = 6.0

// eraseTolerance 橡皮擦的放大容差, 细线不需要精确点中
const eraseTolerance = 12.0

// minDragDistance 小于该距离的拖动视为误触, 不生成图形
const minDragDistance = 2.0

// Style 是新图形继承的公共属性。
type Style struct {
	StrokeColor string
	StrokeWidth float64
	FillColor   string
	Opacity     float64
}

// DefaultStyle 工具栏的初始样式
var DefaultStyle = Style{
	StrokeColor: "#1e1e1e",
	StrokeWidth: 2,
	FillColor:   "",
	Opacity:     1,
}

// Emitter 把本地操作发给服务端。引擎乐观应用本地变更,
// 发送失败时记录日志, 收敛交给后续的远端事件。
type Emitter interface {
	CreateShape(s *shape.Shape) error
	UpdateShape(s *shape.Shape) error
	DeleteShape(shapeID string) error
}

// Engine 持有本地文档和交互状态。所有方法都可以被渲染循环与
// 网络回调并发调用。
type Engine struct {
	mu      sync.Mutex
	shapes  []*shape.Shape
	index   map[string]*shape.Shape
	pending map[string]bool
	// deferred 记录在等 ACK 期间被变换过的图形, 对账后补发更新
	deferred map[string]bool

	tool  Tool
	state State
	style Style

	anchor   shape.Point
	draft    *shape.Shape
	selected *shape.Shape

	drag    *geometry.DragGesture
	resize  *geometry.ResizeGesture
	rotate  *geometry.RotateGesture
	pointer shape.Point
	dirty   bool
	// 旋转图形的缩放手势坐标系: 指针先转回未旋转的几何坐标
	resizeAngle  float64
	resizeCenter shape.Point

	emitter Emitter
}

func NewEngine(emitter Emitter) *Engine {
	if emitter == nil {
		panic("client: emitter is nil")
	}
	return &Engine{
		index:    make(map[string]*shape.Shape),
		pending:  make(map[string]bool),
		deferred: make(map[string]bool),
		tool:     ToolSelect,
		style:    DefaultStyle,
		emitter:  emitter,
	}
}

// SetTool 切换工具。切换会结束文本编辑并清除选区。
func (e *Engine) SetTool(t Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateEditingText {
		e.commitTextLocked()
	}
	e.tool = t
	if t != ToolSelect {
		e.selected = nil
	}
	e.state = StateIdle
}

func (e *Engine) Tool() Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetStyle 更新新图形继承的样式。
func (e *Engine) SetStyle(st Style) {
	e.mu.Lock()
	e.style = st
	e.mu.Unlock()
}

// Shapes 返回文档快照, 按 z 序排列。渲染器每帧调用。
func (e *Engine) Shapes() []*shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*shape.Shape, 0, len(e.shapes)+1)
	for _, s := range e.shapes {
		out = append(out, s.Clone())
	}
	if e.draft != nil {
		out = append(out, e.draft.Clone())
	}
	return out
}

// SelectedID 返回当前选中图形的 id, 未选中时返回空串。
func (e *Engine) SelectedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return ""
	}
	return e.selected.ID
}

// Selected 返回选中图形的拷贝。
func (e *Engine) Selected() *shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return nil
	}
	return e.selected.Clone()
}

// PointerDown 处理指针按下。
func (e *Engine) PointerDown(p shape.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateEditingText {
		e.commitTextLocked()
		e.state = StateIdle
	}

	e.anchor = p
	switch e.tool {
	case ToolSelect:
		e.beginSelectLocked(p)
	case ToolEraser:
		e.state = StateErasing
		e.eraseAtLocked(p)
	case ToolText:
		// 编辑目标在抬起时生成, 按下只收掉上一个编辑
	default:
		e.beginDraftLocked(p)
	}
}

// PointerMove 处理指针移动。
func (e *Engine) PointerMove(p shape.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDrawing:
		e.updateDraftLocked(p)
	case StateTransforming:
		e.updateTransformLocked(p)
	case StateErasing:
		e.eraseAtLocked(p)
	}
}

// PointerUp 处理指针抬起, 结束当前手势。
func (e *Engine) PointerUp(p shape.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateDrawing:
		e.updateDraftLocked(p)
		e.commitDraftLocked()
		e.state = StateIdle
	case StateTransforming:
		e.updateTransformLocked(p)
		e.endTransformLocked()
		e.state = StateIdle
	case StateErasing:
		e.eraseAtLocked(p)
		e.state = StateIdle
	case StateIdle:
		if e.tool == ToolText {
			e.beginTextLocked(p)
		}
	}
}

// --- 绘制 ---

func (e *Engine) beginDraftLocked(p shape.Point) {
	s := &shape.Shape{
		Type:        toolShapeType(e.tool),
		X:           p.X,
		Y:           p.Y,
		StrokeColor: e.style.StrokeColor,
		StrokeWidth: e.style.StrokeWidth,
		FillColor:   e.style.FillColor,
		Opacity:     e.style.Opacity,
	}
	switch s.Type {
	case shape.TypeRect, shape.TypeDiamond:
		s.Geom = &shape.BoxGeometry{}
	case shape.TypeCircle:
		s.Geom = &shape.CircleGeometry{}
	case shape.TypeLine, shape.TypeArrow:
		s.Geom = &shape.LineGeometry{X2: p.X, Y2: p.Y}
	case shape.TypePencil:
		s.Geom = &shape.PencilGeometry{Points: []shape.Point{p}}
	}
	e.draft = s
	e.state = StateDrawing
}

func (e *Engine) updateDraftLocked(p shape.Point) {
	if e.draft == nil {
		return
	}
	switch g := e.draft.Geom.(type) {
	case *shape.BoxGeometry:
		// 锚点固定在按下位置, 向任意方向拖动时规格化
		e.draft.X = math.Min(e.anchor.X, p.X)
		e.draft.Y = math.Min(e.anchor.Y, p.Y)
		g.Width = math.Abs(p.X - e.anchor.X)
		g.Height = math.Abs(p.Y - e.anchor.Y)
	case *shape.CircleGeometry:
		g.Radius = math.Hypot(p.X-e.anchor.X, p.Y-e.anchor.Y)
	case *shape.LineGeometry:
		g.X2, g.Y2 = p.X, p.Y
	case *shape.PencilGeometry:
		g.Points = append(g.Points, p)
	}
}

func (e *Engine) commitDraftLocked() {
	s := e.draft
	e.draft = nil
	if s == nil || e.degenerateLocked(s) {
		return
	}
	s.ID = uuid.New().String()
	e.insertLocked(s)
	e.pending[s.ID] = true
	if err := e.emitter.CreateShape(s.Clone()); err != nil {
		logrus.WithError(err).Warn("Failed to emit shape create")
	}
}

// degenerateLocked 过滤没有实际面积或长度的误触图形
func (e *Engine) degenerateLocked(s *shape.Shape) bool {
	switch g := s.Geom.(type) {
	case *shape.BoxGeometry:
		return g.Width < minDragDistance && g.Height < minDragDistance
	case *shape.CircleGeometry:
		return g.Radius < minDragDistance
	case *shape.LineGeometry:
		return math.Hypot(g.X2-s.X, g.Y2-s.Y) < minDragDistance
	case *shape.PencilGeometry:
		return len(g.Points) < 2
	}
	return false
}

// --- 选择与变换 ---

func (e *Engine) beginSelectLocked(p shape.Point) {
	e.pointer = p
	if e.selected != nil {
		// 手柄随图形一起旋转绘制, 命中判定把指针转回未旋转的坐标系
		hp := p
		center := geometry.RawBounds(e.selected).Center()
		if e.selected.Rotation != 0 {
			hp = geometry.RotatePoint(p, -e.selected.Rotation, center)
		}
		b := geometry.Bounds(e.selected)
		switch h := geometry.HandleAt(b, hp); h {
		case geometry.HandleRotate:
			e.rotate = geometry.StartRotate(e.selected, p)
			e.state = StateTransforming
			return
		case geometry.HandleNone, geometry.HandleMove:
			// 中心手柄走普通命中路径, 落在图形上就是移动
		default:
			e.resizeAngle = e.selected.Rotation
			e.resizeCenter = center
			e.resize = geometry.StartResize(h, hp)
			e.state = StateTransforming
			return
		}
	}

	if s := e.hitTopLocked(p); s != nil {
		e.selected = s
		e.drag = geometry.StartDrag(p)
		e.state = StateTransforming
		return
	}
	e.selected = nil
	e.state = StateIdle
}

// hitTopLocked 自顶向下找第一个命中的图形
func (e *Engine) hitTopLocked(p shape.Point) *shape.Shape {
	for i := len(e.shapes) - 1; i >= 0; i-- {
		if geometry.HitTest(e.shapes[i], p, hitTolerance) {
			return e.shapes[i]
		}
	}
	return nil
}

func (e *Engine) updateTransformLocked(p shape.Point) {
	if e.selected == nil {
		return
	}
	// 原地点击不算变换, 不触发空更新
	if p == e.pointer {
		return
	}
	e.pointer = p
	switch {
	case e.drag != nil:
		e.drag.Update(e.selected, p)
	case e.resize != nil:
		if e.resizeAngle != 0 {
			p = geometry.RotatePoint(p, -e.resizeAngle, e.resizeCenter)
		}
		e.resize.Update(e.selected, p)
	case e.rotate != nil:
		e.rotate.Update(e.selected, p)
	default:
		return
	}
	e.dirty = true
}

func (e *Engine) endTransformLocked() {
	e.drag, e.resize, e.rotate = nil, nil, nil
	e.resizeAngle = 0
	if e.selected == nil || !e.dirty {
		e.dirty = false
		return
	}
	e.dirty = false
	// 仍在等 ACK 的图形没有权威 id, 变换结果记下来, 对账后补发
	if e.pending[e.selected.ID] {
		e.deferred[e.selected.ID] = true
		return
	}
	if err := e.emitter.UpdateShape(e.selected.Clone()); err != nil {
		logrus.WithError(err).Warn("Failed to emit shape update")
	}
}

// RotateSelectedBy 把选中图形绕其包围盒中心旋转 delta 弧度。
// 键盘旋转入口, 正负 90 度成对调用时图形精确还原。
func (e *Engine) RotateSelectedBy(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return
	}
	center := geometry.Bounds(e.selected).Center()
	geometry.RotateAbout(e.selected, delta, center)
	if e.pending[e.selected.ID] {
		e.deferred[e.selected.ID] = true
		return
	}
	if err := e.emitter.UpdateShape(e.selected.Clone()); err != nil {
		logrus.WithError(err).Warn("Failed to emit shape update")
	}
}

// DeleteSelected 删除选中图形并同步到服务端。
func (e *Engine) DeleteSelected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == nil {
		return
	}
	id := e.selected.ID
	e.removeLocked(id)
	e.selected = nil
	if e.pending[id] {
		delete(e.pending, id)
		delete(e.deferred, id)
		return
	}
	if err := e.emitter.DeleteShape(id); err != nil {
		logrus.WithError(err).Warn("Failed to emit shape delete")
	}
}

// --- 橡皮擦 ---

// eraseAtLocked 以放大容差命中测试全部图形, 每个命中的图形都被
// 乐观移除并逐个上行删除, 堆叠的图形一次擦掉。
func (e *Engine) eraseAtLocked(p shape.Point) {
	hits := make([]string, 0, 1)
	for _, s := range e.shapes {
		if geometry.HitTest(s, p, eraseTolerance) {
			hits = append(hits, s.ID)
		}
	}
	for _, id := range hits {
		e.removeLocked(id)
		if e.selected != nil && e.selected.ID == id {
			e.selected = nil
		}
		if e.pending[id] {
			delete(e.pending, id)
			delete(e.deferred, id)
			continue
		}
		if err := e.emitter.DeleteShape(id); err != nil {
			logrus.WithError(err).Warn("Failed to emit shape delete")
		}
	}
}

// --- 文本 ---

func (e *Engine) beginTextLocked(p shape.Point) {
	e.draft = &shape.Shape{
		Type:        shape.TypeText,
		X:           p.X,
		Y:           p.Y,
		StrokeColor: e.style.StrokeColor,
		StrokeWidth: e.style.StrokeWidth,
		Opacity:     e.style.Opacity,
		Geom:        &shape.TextGeometry{FontSize: 16},
	}
	e.state = StateEditingText
}

// SetText 更新编辑中的文本内容。
func (e *Engine) SetText(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditingText || e.draft == nil {
		return
	}
	e.draft.Geom.(*shape.TextGeometry).Content = content
}

// CommitText 结束文本编辑。空文本直接丢弃。
func (e *Engine) CommitText() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateEditingText {
		return
	}
	e.commitTextLocked()
	e.state = StateIdle
}

func (e *Engine) commitTextLocked() {
	s := e.draft
	e.draft = nil
	if s == nil {
		return
	}
	if g, ok := s.Geom.(*shape.TextGeometry); !ok || g.Content == "" {
		return
	}
	s.ID = uuid.New().String()
	e.insertLocked(s)
	e.pending[s.ID] = true
	if err := e.emitter.CreateShape(s.Clone()); err != nil {
		logrus.WithError(err).Warn("Failed to emit shape create")
	}
}

// --- 远端事件合流 ---

// Seed 用服务端的初始图形列表重置文档。
func (e *Engine) Seed(messages []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shapes = e.shapes[:0]
	e.index = make(map[string]*shape.Shape)
	e.pending = make(map[string]bool)
	e.deferred = make(map[string]bool)
	e.selected = nil
	for _, msg := range messages {
		s, err := shape.Decode(msg)
		if err != nil {
			logrus.WithError(err).Warn("Skipping undecodable seed shape")
			continue
		}
		e.insertLocked(s)
	}
}

// ApplyRemoteCreate 合并其他客户端创建的图形, 按 id 幂等。
func (e *Engine) ApplyRemoteCreate(message string) {
	s, err := shape.Decode(message)
	if err != nil {
		logrus.WithError(err).Warn("Dropping undecodable remote create")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.index[s.ID]; ok {
		*existing = *s
		return
	}
	e.insertLocked(s)
}

// ApplyAck 完成临时 id 到权威 id 的对账。等待期间发生过的本地删除
// 或变换在这里带着权威 id 补发, 存储端不会留在过期的几何上。
func (e *Engine) ApplyAck(tempID, shapeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.index[tempID]
	if !ok {
		// ACK 到达前图形已被本地删除, 补发权威删除
		delete(e.pending, tempID)
		delete(e.deferred, tempID)
		if err := e.emitter.DeleteShape(shapeID); err != nil {
			logrus.WithError(err).Warn("Failed to emit delete for acked shape")
		}
		return
	}
	delete(e.index, tempID)
	delete(e.pending, tempID)
	s.ID = shapeID
	e.index[shapeID] = s

	if e.deferred[tempID] {
		delete(e.deferred, tempID)
		if err := e.emitter.UpdateShape(s.Clone()); err != nil {
			logrus.WithError(err).Warn("Failed to emit deferred shape update")
		}
	}
}

// ApplyRemoteUpdate 覆盖写远端更新的图形。
func (e *Engine) ApplyRemoteUpdate(message string) {
	s, err := shape.Decode(message)
	if err != nil {
		logrus.WithError(err).Warn("Dropping undecodable remote update")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.index[s.ID]
	if !ok {
		e.insertLocked(s)
		return
	}
	*existing = *s
}

// ApplyRemoteDelete 移除远端删除的图形。
func (e *Engine) ApplyRemoteDelete(shapeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(shapeID)
	if e.selected != nil && e.selected.ID == shapeID {
		e.selected = nil
	}
}

// --- 内部文档操作 ---

func (e *Engine) insertLocked(s *shape.Shape) {
	e.shapes = append(e.shapes, s)
	e.index[s.ID] = s
}

func (e *Engine) removeLocked(id string) {
	if _, ok := e.index[id]; !ok {
		return
	}
	delete(e.index, id)
	for i, s := range e.shapes {
		if s.ID == id {
			e.shapes = append(e.shapes[:i], e.shapes[i+1:]...)
			break
		}
	}
}

func toolShapeType(t Tool) shape.Type {
	switch t {
	case ToolRect:
		return shape.TypeRect
	case ToolDiamond:
		return shape.TypeDiamond
	case ToolCircle:
		return shape.TypeCircle
	case ToolLine:
		return shape.TypeLine
	case ToolArrow:
		return shape.TypeArrow
	case ToolPencil:
		return shape.TypePencil
	case ToolText:
		return shape.TypeText
	}
	return shape.TypeRect
}
