package panels

import (
	"strconv"

	"layer-composer/internal/app"
	"layer-composer/internal/layer"
	"layer-composer/internal/selection"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// PropertySheet displays and edits the selected layer and the canvas
// settings.
type PropertySheet struct {
	session   *app.Session
	window    fyne.Window
	container fyne.CanvasObject

	// refreshing suppresses change callbacks while widgets are filled in
	refreshing bool

	nameEntry     *widget.Entry
	xEntry        *widget.Entry
	yEntry        *widget.Entry
	widthEntry    *widget.Entry
	heightEntry   *widget.Entry
	rotationEntry *widget.Entry
	opacity       *widget.Slider
	blendSelect   *widget.Select

	textCard      *widget.Card
	textEntry     *commitEntry
	fontSizeEntry *widget.Entry
	textColor     *widget.Entry
	alignSelect   *widget.Select
	uppercase     *widget.Check

	shapeCard   *widget.Card
	fillEntry   *widget.Entry
	radiusEntry *widget.Entry

	layerCard *widget.Card

	// Canvas settings
	canvasWidth  *widget.Entry
	canvasHeight *widget.Entry
	background   *widget.Entry
	gridVisible  *widget.Check
	gridSnap     *widget.Check
	gridSize     *widget.Entry
	guides       *widget.Check
}

// NewPropertySheet creates a new property sheet panel.
func NewPropertySheet(session *app.Session) *PropertySheet {
	ps := &PropertySheet{session: session}

	ps.buildUI()
	ps.refresh()

	session.On(app.EventLayersChanged, func(interface{}) { ps.refresh() })
	session.On(app.EventSelectionChanged, func(interface{}) { ps.refresh() })
	session.On(app.EventSettingsChanged, func(interface{}) { ps.refresh() })
	session.On(app.EventOpened, func(interface{}) { ps.refresh() })

	return ps
}

// Container returns the panel container.
func (ps *PropertySheet) Container() fyne.CanvasObject {
	return ps.container
}

// SetWindow sets the parent window for dialogs.
func (ps *PropertySheet) SetWindow(w fyne.Window) {
	ps.window = w
}

func (ps *PropertySheet) buildUI() {
	newEntry := func(apply func(v string)) *widget.Entry {
		e := widget.NewEntry()
		e.OnSubmitted = func(v string) {
			if !ps.refreshing {
				apply(v)
			}
		}
		return e
	}
	number := func(apply func(l *layer.Layer, v float64)) func(string) {
		return func(s string) {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ps.showError(err)
				ps.refresh()
				return
			}
			ps.update(func(l *layer.Layer) { apply(l, v) })
		}
	}

	ps.nameEntry = newEntry(func(v string) { ps.update(func(l *layer.Layer) { l.Name = v }) })
	ps.xEntry = newEntry(number(func(l *layer.Layer, v float64) { l.X = v }))
	ps.yEntry = newEntry(number(func(l *layer.Layer, v float64) { l.Y = v }))
	ps.widthEntry = newEntry(func(v string) { ps.resize(selection.Horizontal, v) })
	ps.heightEntry = newEntry(func(v string) { ps.resize(selection.Vertical, v) })
	ps.rotationEntry = newEntry(number(func(l *layer.Layer, v float64) { l.Rotation = v }))

	ps.opacity = widget.NewSlider(0, 100)
	ps.opacity.OnChanged = func(v float64) {
		if !ps.refreshing {
			ps.updateWith(func(l *layer.Layer) { l.Opacity = v }, false)
		}
	}
	ps.opacity.OnChangeEnded = func(v float64) {
		if !ps.refreshing {
			ps.updateWith(func(l *layer.Layer) { l.Opacity = v }, true)
		}
	}

	var modes []string
	for _, m := range layer.BlendModes() {
		modes = append(modes, m.String())
	}
	ps.blendSelect = widget.NewSelect(modes, func(s string) {
		if ps.refreshing {
			return
		}
		m, err := layer.ParseBlendMode(s)
		if err != nil {
			ps.showError(err)
			return
		}
		ps.update(func(l *layer.Layer) { l.BlendMode = m })
	})

	ps.layerCard = widget.NewCard("Layer", "", widget.NewForm(
		widget.NewFormItem("Name", ps.nameEntry),
		widget.NewFormItem("X", ps.xEntry),
		widget.NewFormItem("Y", ps.yEntry),
		widget.NewFormItem("Width", ps.widthEntry),
		widget.NewFormItem("Height", ps.heightEntry),
		widget.NewFormItem("Rotation", ps.rotationEntry),
		widget.NewFormItem("Opacity", ps.opacity),
		widget.NewFormItem("Blend", ps.blendSelect),
	))

	// Text
	// Typing edits the live layer; leaving the entry records one undo step.
	ps.textEntry = newCommitEntry()
	ps.textEntry.SetMinRowsVisible(3)
	ps.textEntry.OnChanged = func(v string) {
		if !ps.refreshing {
			ps.updateWith(func(l *layer.Layer) {
				if l.Text != nil {
					l.Text.Text = v
				}
			}, false)
		}
	}
	ps.textEntry.OnCommit = func(v string) {
		if !ps.refreshing {
			ps.updateText(func(t *layer.TextContent) { t.Text = v })
		}
	}
	ps.textEntry.OnSubmitted = ps.textEntry.OnCommit
	ps.fontSizeEntry = newEntry(func(v string) {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil || size <= 0 {
			ps.refresh()
			return
		}
		ps.updateText(func(t *layer.TextContent) { t.FontSize = size })
	})
	ps.textColor = newEntry(func(v string) { ps.updateText(func(t *layer.TextContent) { t.Color = v }) })
	ps.alignSelect = widget.NewSelect(
		[]string{string(layer.AlignLeft), string(layer.AlignCenter), string(layer.AlignRight)},
		func(v string) {
			if !ps.refreshing {
				ps.updateText(func(t *layer.TextContent) { t.Align = layer.TextAlign(v) })
			}
		})
	ps.uppercase = widget.NewCheck("Uppercase", func(on bool) {
		if ps.refreshing {
			return
		}
		ps.updateText(func(t *layer.TextContent) {
			t.Transform = layer.TransformNone
			if on {
				t.Transform = layer.TransformUppercase
			}
		})
	})
	ps.textCard = widget.NewCard("Text", "", widget.NewForm(
		widget.NewFormItem("Text", ps.textEntry),
		widget.NewFormItem("Size", ps.fontSizeEntry),
		widget.NewFormItem("Color", ps.textColor),
		widget.NewFormItem("Align", ps.alignSelect),
		widget.NewFormItem("", ps.uppercase),
	))

	// Shape
	ps.fillEntry = newEntry(func(v string) {
		ps.update(func(l *layer.Layer) {
			if l.Shape != nil {
				l.Shape.FillColor = v
			}
		})
	})
	ps.radiusEntry = newEntry(number(func(l *layer.Layer, v float64) {
		if l.Shape != nil {
			l.Shape.BorderRadius = v
		}
	}))
	ps.shapeCard = widget.NewCard("Shape", "", widget.NewForm(
		widget.NewFormItem("Fill", ps.fillEntry),
		widget.NewFormItem("Radius", ps.radiusEntry),
	))

	// Canvas
	ps.canvasWidth = newEntry(func(string) { ps.applySettings() })
	ps.canvasHeight = newEntry(func(string) { ps.applySettings() })
	ps.background = newEntry(func(string) { ps.applySettings() })
	ps.gridSize = newEntry(func(string) { ps.applySettings() })
	onCheck := func(bool) {
		if !ps.refreshing {
			ps.applySettings()
		}
	}
	ps.gridVisible = widget.NewCheck("Show grid", onCheck)
	ps.gridSnap = widget.NewCheck("Snap to grid", onCheck)
	ps.guides = widget.NewCheck("Smart guides", onCheck)

	canvasCard := widget.NewCard("Canvas", "", container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Width", ps.canvasWidth),
			widget.NewFormItem("Height", ps.canvasHeight),
			widget.NewFormItem("Background", ps.background),
			widget.NewFormItem("Grid size", ps.gridSize),
		),
		ps.gridVisible,
		ps.gridSnap,
		ps.guides,
	))

	ps.container = container.NewVBox(ps.layerCard, ps.textCard, ps.shapeCard, canvasCard)
}

func (ps *PropertySheet) showError(err error) {
	if ps.window != nil {
		dialog.ShowError(err, ps.window)
	}
}

func (ps *PropertySheet) update(fn func(*layer.Layer)) {
	ps.updateWith(fn, true)
}

func (ps *PropertySheet) updateWith(fn func(*layer.Layer), final bool) {
	if err := ps.session.UpdateSelected(fn, final); err != nil {
		ps.showError(err)
		ps.refresh()
	}
}

func (ps *PropertySheet) updateText(fn func(*layer.TextContent)) {
	ps.update(func(l *layer.Layer) {
		if l.Text != nil {
			fn(l.Text)
		}
	})
}

func (ps *PropertySheet) resize(axis selection.Axis, s string) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		ps.refresh()
		return
	}
	ps.session.ResizeToDimension(axis, v)
}

func (ps *PropertySheet) applySettings() {
	cs := ps.session.Settings()
	if w, err := strconv.Atoi(ps.canvasWidth.Text); err == nil {
		cs.Width = w
	}
	if h, err := strconv.Atoi(ps.canvasHeight.Text); err == nil {
		cs.Height = h
	}
	if size, err := strconv.ParseFloat(ps.gridSize.Text, 64); err == nil {
		cs.Grid.Size = size
	}
	cs.Background = ps.background.Text
	cs.Grid.Visible = ps.gridVisible.Checked
	cs.Grid.Snap = ps.gridSnap.Checked
	cs.Guides.Enabled = ps.guides.Checked
	if err := ps.session.SetSettings(cs); err != nil {
		ps.showError(err)
		ps.refresh()
	}
}

// refresh fills every widget from the session.
func (ps *PropertySheet) refresh() {
	ps.refreshing = true
	defer func() { ps.refreshing = false }()

	cs := ps.session.Settings()
	ps.canvasWidth.SetText(strconv.Itoa(cs.Width))
	ps.canvasHeight.SetText(strconv.Itoa(cs.Height))
	ps.background.SetText(cs.Background)
	ps.gridSize.SetText(formatFloat(cs.Grid.Size))
	ps.gridVisible.SetChecked(cs.Grid.Visible)
	ps.gridSnap.SetChecked(cs.Grid.Snap)
	ps.guides.SetChecked(cs.Guides.Enabled)
	if cs.IsInfinite {
		ps.canvasWidth.Disable()
		ps.canvasHeight.Disable()
	} else {
		ps.canvasWidth.Enable()
		ps.canvasHeight.Enable()
	}

	selected := ps.session.Selected()
	if len(selected) != 1 {
		ps.layerCard.Hide()
		ps.textCard.Hide()
		ps.shapeCard.Hide()
		return
	}
	l := selected[0]
	ps.layerCard.Show()
	ps.nameEntry.SetText(l.Name)
	ps.xEntry.SetText(formatFloat(l.X))
	ps.yEntry.SetText(formatFloat(l.Y))
	ps.widthEntry.SetText(formatFloat(l.Width))
	ps.heightEntry.SetText(formatFloat(l.Height))
	ps.rotationEntry.SetText(formatFloat(l.Rotation))
	ps.opacity.SetValue(l.Opacity)
	ps.blendSelect.SetSelected(l.BlendMode.String())

	if l.Text != nil {
		ps.textCard.Show()
		if ps.textEntry.Text != l.Text.Text {
			ps.textEntry.SetText(l.Text.Text)
		}
		ps.fontSizeEntry.SetText(formatFloat(l.Text.FontSize))
		ps.textColor.SetText(l.Text.Color)
		ps.alignSelect.SetSelected(string(l.Text.Align))
		ps.uppercase.SetChecked(l.Text.Transform == layer.TransformUppercase)
	} else {
		ps.textCard.Hide()
	}

	if l.Shape != nil {
		ps.shapeCard.Show()
		ps.fillEntry.SetText(l.Shape.FillColor)
		ps.radiusEntry.SetText(formatFloat(l.Shape.BorderRadius))
	} else {
		ps.shapeCard.Hide()
	}
}

// FocusText focuses the text entry of the selected text layer.
func (ps *PropertySheet) FocusText() {
	if ps.window != nil && ps.textCard.Visible() {
		ps.window.Canvas().Focus(ps.textEntry)
	}
}
