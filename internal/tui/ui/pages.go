package ui

import "github.com/rivo/tview"

// Pages is a stack of named components on top of tview.Pages. The bottom
// page is never popped.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(top Component)
}

func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers a component under name, hidden.
func (p *Pages) Add(name string, c Component) {
	p.components[name] = c
	p.AddPage(name, c, true, false)
}

// SetOnChange sets a callback that fires when the top page changes.
func (p *Pages) SetOnChange(fn func(top Component)) {
	p.onChange = fn
}

// Push shows name on top of the stack. A page already on the stack is
// brought back by popping the pages above it.
func (p *Pages) Push(name string) {
	if _, ok := p.components[name]; !ok {
		return
	}
	for i, n := range p.stack {
		if n == name {
			for _, above := range p.stack[i+1:] {
				p.HidePage(above)
			}
			p.stack = p.stack[:i+1]
			p.show(name)
			return
		}
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.show(name)
}

// Pop removes the top page and returns its name, or "" at the bottom.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	return top
}

// Reset clears the stack and shows only name.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Titles returns the titles of the stacked pages, bottom first.
func (p *Pages) Titles() []string {
	out := make([]string, 0, len(p.stack))
	for _, n := range p.stack {
		out = append(out, p.components[n].Title())
	}
	return out
}

// Component returns the component registered under name.
func (p *Pages) Component(name string) Component {
	return p.components[name]
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if p.onChange != nil {
		p.onChange(p.components[name])
	}
}
