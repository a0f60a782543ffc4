package view

import (
	"errors"
	"strconv"
)

const (
	// ViewCatalog is the product catalog panel.
	ViewCatalog = "mallisto"
	// ViewCheckout is the checkout / confirmation panel.
	ViewCheckout = "checkout"

	// TabKey is the dataset key naming the view a tab controls.
	TabKey = "storefront-tab"
	// ViewKey is the dataset key naming a view panel.
	ViewKey = "storefront-view"
	// ActiveViewKey is the root dataset key reflecting the active view.
	ActiveViewKey = "storefront-active-view"
)

// ErrNilRoot is returned when the controller is constructed without a root element.
var ErrNilRoot = errors.New("view: root element is required")

// Config groups controller inputs.
type Config struct {
	Root         Element
	Tabs         []Element
	Views        []Element
	DefaultView  string
	OnViewChange func(view string)
}

// Controller keeps exactly one registered view active and the paired tabs,
// panels and root markers in sync with it.
type Controller struct {
	root     Element
	tabs     map[string]Element
	tabOrder []string
	views    map[string]Element
	order    []string
	fallback string
	current  string
	onChange func(string)
}

// New builds a controller. Tabs and views without a name tag are ignored.
func New(cfg Config) (*Controller, error) {
	if isNil(cfg.Root) {
		return nil, ErrNilRoot
	}
	c := &Controller{
		root:     cfg.Root,
		tabs:     map[string]Element{},
		views:    map[string]Element{},
		onChange: cfg.OnViewChange,
	}
	for _, tab := range cfg.Tabs {
		if isNil(tab) {
			continue
		}
		name := tab.Data(TabKey)
		if name == "" {
			continue
		}
		if _, seen := c.tabs[name]; !seen {
			c.tabOrder = append(c.tabOrder, name)
		}
		c.tabs[name] = tab
	}
	for _, panel := range cfg.Views {
		if isNil(panel) {
			continue
		}
		name := panel.Data(ViewKey)
		if name == "" {
			continue
		}
		if _, seen := c.views[name]; !seen {
			c.order = append(c.order, name)
		}
		c.views[name] = panel
	}

	defaultView := cfg.DefaultView
	if defaultView == "" {
		defaultView = ViewCatalog
	}
	if _, ok := c.views[defaultView]; ok {
		c.fallback = defaultView
	} else if len(c.order) > 0 {
		c.fallback = c.order[0]
	}
	return c, nil
}

// Init applies the resolved initial view and reports it. It returns "" when
// no views are registered.
func (c *Controller) Init() string {
	if c.fallback == "" {
		return ""
	}
	c.apply(c.fallback)
	c.current = c.fallback
	c.emit(c.current)
	return c.current
}

// SetView activates name. Unregistered names and the already active view are
// ignored and the current view is returned unchanged.
func (c *Controller) SetView(name string) string {
	if _, ok := c.views[name]; !ok {
		return c.current
	}
	if c.current == name {
		return c.current
	}
	c.current = name
	c.apply(name)
	c.emit(name)
	return c.current
}

// View returns the active view, "" before Init.
func (c *Controller) View() string {
	return c.current
}

// Views returns the registered view names in registration order.
func (c *Controller) Views() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Has reports whether name is a registered view.
func (c *Controller) Has(name string) bool {
	_, ok := c.views[name]
	return ok
}

func (c *Controller) apply(active string) {
	for _, name := range c.order {
		on := name == active
		panel := c.views[name]
		panel.SetHidden(!on)
		panel.SetAttr("aria-hidden", strconv.FormatBool(!on))
		panel.ToggleClass("is-active-view", on)
	}
	for _, name := range c.tabOrder {
		on := name == active
		tab := c.tabs[name]
		tab.ToggleClass("is-active", on)
		tab.SetAttr("aria-selected", strconv.FormatBool(on))
		if on {
			tab.SetAttr("tabindex", "0")
		} else {
			tab.SetAttr("tabindex", "-1")
		}
	}
	c.root.SetData(ActiveViewKey, active)
	for _, name := range c.order {
		c.root.ToggleClass("storefront--"+name, name == active)
	}
}

func (c *Controller) emit(v string) {
	if c.onChange != nil {
		c.onChange(v)
	}
}

func isNil(e Element) bool {
	if e == nil {
		return true
	}
	if n, ok := e.(*Node); ok && n == nil {
		return true
	}
	return false
}
