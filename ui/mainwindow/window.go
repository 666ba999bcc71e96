// Package mainwindow provides the main application window.
package mainwindow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"layer-composer/internal/app"
	"layer-composer/internal/format"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"
	"layer-composer/internal/selection"
	"layer-composer/internal/version"
	"layer-composer/internal/viewport"
	"layer-composer/pkg/geometry"
	"layer-composer/ui/canvas"
	"layer-composer/ui/panels"
	"layer-composer/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const appTitle = "Layer Composer"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	session *app.Session
	prefs   *prefs.Prefs

	canvas     *canvas.ComposerCanvas
	sidePanel  *panels.SidePanel
	arrangeBar *panels.ArrangeBar
	statusBar  *widget.Label
	zoomLabel  *widget.Label
	pointer    geometry.Point2D

	toolButtons map[viewport.Tool]*widget.Button
	gridItem    *fyne.MenuItem
	guidesItem  *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, session *app.Session, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window:  win,
		app:     fyneApp,
		session: session,
		prefs:   p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.SetCloseIntercept(mw.onQuit)
	mw.Resize(fyne.NewSize(1400, 900))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewComposerCanvas(mw.session)
	mw.canvas.OnPointer(func(p geometry.Point2D) {
		mw.pointer = p
		mw.updateStatus()
	})
	mw.canvas.OnEditText(mw.editText)

	mw.sidePanel = panels.NewSidePanel(mw.session, mw.prefs)
	mw.sidePanel.SetWindow(mw.Window)
	mw.arrangeBar = panels.NewArrangeBar(mw.session)
	mw.arrangeBar.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.zoomLabel = widget.NewLabel("100%")

	// Canvas area with toolbars on top
	canvasArea := container.NewBorder(
		container.NewVBox(mw.createToolbar(), mw.arrangeBar.Container()), // top
		nil,       // bottom
		nil,       // left
		nil,       // right
		mw.canvas, // center
	)

	// Create main layout: canvas area | side panel
	split := container.NewHSplit(canvasArea, mw.sidePanel.Container())
	split.SetOffset(0.75)

	content := container.NewBorder(
		nil,
		container.NewPadded(container.NewBorder(nil, nil, nil, mw.zoomLabel, mw.statusBar)),
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
}

// createToolbar creates the tool and zoom buttons.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	vp := mw.session.Viewport()
	mw.toolButtons = make(map[viewport.Tool]*widget.Button)
	tool := func(label string, t viewport.Tool) *widget.Button {
		b := widget.NewButton(label, func() { vp.SetTool(t) })
		mw.toolButtons[t] = b
		return b
	}

	return container.NewHBox(
		tool("Select (V)", viewport.ToolSelect),
		tool("Hand (H)", viewport.ToolHand),
		tool("Rect (R)", viewport.ToolRectangle),
		tool("Ellipse (O)", viewport.ToolEllipse),
		widget.NewButton("Text", mw.onAddText),
		widget.NewSeparator(),
		widget.NewButton("Undo", func() { mw.session.Undo() }),
		widget.NewButton("Redo", func() { mw.session.Redo() }),
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		widget.NewButton("-", func() { mw.session.HandleShortcut(app.Shortcut{Key: "-"}) }),
		widget.NewButton("+", func() { mw.session.HandleShortcut(app.Shortcut{Key: "+"}) }),
		widget.NewButton("Fit", mw.session.FitToView),
		widget.NewButton("1:1", func() { vp.SetScale(1) }),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	s := mw.session

	// File menu
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Canvas", mw.onNewCanvas),
		mw.formatMenuItem(),
		fyne.NewMenuItem("New Infinite Canvas", func() { mw.replaceSession(s.NewInfinite) }),
		fyne.NewMenuItem("Open...", mw.onOpen),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Import Image...", mw.onImportImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", mw.onSave),
		fyne.NewMenuItem("Save Session As...", mw.onSaveSessionAs),
		fyne.NewMenuItem("Save As Canvas Preset...", mw.onSavePreset),
		fyne.NewMenuItem("Export Selected...", mw.arrangeBar.Export),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Close Canvas", mw.onCloseCanvas),
	)

	// Edit menu
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", func() { s.Undo() }),
		fyne.NewMenuItem("Redo", func() { s.Redo() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Duplicate", func() { s.Duplicate() }),
		fyne.NewMenuItem("Delete", func() { s.DeleteSelected() }),
		fyne.NewMenuItem("Select All", s.SelectAll),
		fyne.NewMenuItem("Deselect", s.ClearSelection),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Add Text", mw.onAddText),
		fyne.NewMenuItem("Add Rectangle", func() { mw.addShape(layer.ShapeRectangle) }),
		fyne.NewMenuItem("Add Ellipse", func() { mw.addShape(layer.ShapeEllipse) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Preferences...", mw.onPreferences),
	)

	// Arrange menu
	align := func(label string, mode selection.AlignMode) *fyne.MenuItem {
		return fyne.NewMenuItem(label, func() { s.Align(mode) })
	}
	arrangeMenu := fyne.NewMenu("Arrange",
		align("Align Left", selection.AlignLeft),
		align("Align Center", selection.AlignCenter),
		align("Align Right", selection.AlignRight),
		align("Align Top", selection.AlignTop),
		align("Align Middle", selection.AlignMiddle),
		align("Align Bottom", selection.AlignBottom),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Distribute Horizontally", func() { s.Distribute(selection.Horizontal) }),
		fyne.NewMenuItem("Distribute Vertically", func() { s.Distribute(selection.Vertical) }),
		fyne.NewMenuItem("Distribute and Scale Horizontally", func() { s.DistributeAndScale(selection.Horizontal) }),
		fyne.NewMenuItem("Distribute and Scale Vertically", func() { s.DistributeAndScale(selection.Vertical) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Bring Forward", func() { s.Reorder(selection.Up) }),
		fyne.NewMenuItem("Send Backward", func() { s.Reorder(selection.Down) }),
		fyne.NewMenuItem("Bring to Front", func() { s.BringToFront() }),
		fyne.NewMenuItem("Send to Back", func() { s.SendToBack() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Merge Layers", mw.arrangeBar.Merge),
		fyne.NewMenuItem("Bake Layer", mw.arrangeBar.Bake),
	)

	// View menu
	mw.gridItem = fyne.NewMenuItem("Show Grid", func() {
		mw.toggleSetting(func(cs *project.CanvasSettings) { cs.Grid.Visible = !cs.Grid.Visible })
	})
	mw.guidesItem = fyne.NewMenuItem("Smart Guides", func() {
		mw.toggleSetting(func(cs *project.CanvasSettings) { cs.Guides.Enabled = !cs.Guides.Enabled })
	})
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { s.HandleShortcut(app.Shortcut{Key: "+"}) }),
		fyne.NewMenuItem("Zoom Out", func() { s.HandleShortcut(app.Shortcut{Key: "-"}) }),
		fyne.NewMenuItem("Fit to Window", s.FitToView),
		fyne.NewMenuItem("Actual Size", func() { s.Viewport().SetScale(1) }),
		fyne.NewMenuItemSeparator(),
		mw.gridItem,
		mw.guidesItem,
		fyne.NewMenuItem("Generate...", mw.sidePanel.FocusPrompt),
	)

	// Help menu
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, arrangeMenu, viewMenu, helpMenu))
}

// setupShortcuts routes modifier shortcuts to the session. Plain keys reach
// it through the focused canvas.
func (mw *MainWindow) setupShortcuts() {
	add := func(key fyne.KeyName, shift bool) {
		mod := fyne.KeyModifierShortcutDefault
		if shift {
			mod |= fyne.KeyModifierShift
		}
		mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: mod}, func(fyne.Shortcut) {
			mw.session.HandleShortcut(app.Shortcut{Key: string(key), Ctrl: true, Shift: shift})
		})
	}
	for _, key := range []fyne.KeyName{fyne.KeyZ, fyne.KeyY, fyne.KeyD, fyne.KeyA, fyne.KeyEqual, fyne.KeyMinus, fyne.Key0} {
		add(key, false)
	}
	add(fyne.KeyZ, true)

	mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSave() })
	mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onOpen() })
}

// setupEventHandlers registers for session events.
func (mw *MainWindow) setupEventHandlers() {
	s := mw.session
	redraw := func(interface{}) {
		mw.canvas.Refresh()
		mw.updateStatus()
	}
	s.On(app.EventLayersChanged, redraw)
	s.On(app.EventSelectionChanged, redraw)
	s.On(app.EventSettingsChanged, func(interface{}) {
		cs := s.Settings()
		mw.gridItem.Checked = cs.Grid.Visible
		mw.guidesItem.Checked = cs.Guides.Enabled
		mw.MainMenu().Refresh()
		mw.canvas.Refresh()
	})
	s.On(app.EventViewportChanged, func(data interface{}) {
		if st, ok := data.(viewport.State); ok {
			mw.zoomLabel.SetText(fmt.Sprintf("%d%%", int(st.Scale*100+0.5)))
			mw.highlightTool(st.Tool)
		}
		mw.canvas.Refresh()
	})
	s.On(app.EventOpened, func(interface{}) {
		mw.SetTitle(appTitle)
		redraw(nil)
	})
	s.On(app.EventClosed, func(interface{}) {
		mw.SetTitle(appTitle)
		redraw(nil)
	})
	s.On(app.EventModified, func(data interface{}) {
		title := appTitle
		if modified, ok := data.(bool); ok && modified {
			title += " *"
		}
		mw.SetTitle(title)
	})
	s.On(app.EventErrorChanged, func(data interface{}) {
		if msg, ok := data.(string); ok && msg != "" {
			mw.statusBar.SetText("Error: " + msg)
		}
	})
	s.On(app.EventGenerationChanged, func(interface{}) { mw.updateStatus() })
}

func (mw *MainWindow) highlightTool(active viewport.Tool) {
	for t, b := range mw.toolButtons {
		if t == active {
			b.Importance = widget.HighImportance
		} else {
			b.Importance = widget.MediumImportance
		}
		b.Refresh()
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus() {
	s := mw.session
	if !s.IsOpen() {
		mw.statusBar.SetText("No canvas open")
		return
	}
	parts := []string{
		fmt.Sprintf("%d layers", len(s.Layers())),
		fmt.Sprintf("%d selected", len(s.SelectedIDs())),
		fmt.Sprintf("x %.0f  y %.0f", mw.pointer.X, mw.pointer.Y),
	}
	if n := s.Generating(); n > 0 {
		parts = append(parts, fmt.Sprintf("generating %d", n))
	}
	if msg := s.Err(); msg != "" {
		parts = append(parts, "Error: "+msg)
	}
	mw.statusBar.SetText(strings.Join(parts, "   "))
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir, "")
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
	if err := mw.prefs.Save(); err != nil {
		logging.Logger().Warn("saving preferences failed", "err", err)
	}
}

func (mw *MainWindow) showError(err error) {
	if err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

// confirmDiscard runs then directly, or after the user agrees to drop
// unsaved work.
func (mw *MainWindow) confirmDiscard(then func()) {
	if !mw.session.RequestClose() {
		then()
		return
	}
	dialog.ShowConfirm("Unsaved changes", "Discard the changes on this canvas?", func(ok bool) {
		if ok {
			then()
		}
	}, mw.Window)
}

func (mw *MainWindow) replaceSession(open func()) {
	mw.confirmDiscard(func() {
		open()
		mw.session.FitToView()
	})
}

// Menu action handlers

func (mw *MainWindow) onNewCanvas() {
	mw.replaceSession(func() {
		cs := project.DefaultCanvasSettings()
		cs.Width, cs.Height = mw.prefs.CanvasSize()
		if err := mw.session.NewCanvas(cs); err != nil {
			mw.showError(err)
			mw.session.NewBlank()
		}
	})
}

// formatMenuItem lists the registered canvas formats grouped by kind.
func (mw *MainWindow) formatMenuItem() *fyne.MenuItem {
	var items []*fyne.MenuItem
	var last format.Kind
	for _, f := range format.List() {
		if last != "" && f.Kind != last {
			items = append(items, fyne.NewMenuItemSeparator())
		}
		last = f.Kind
		w, h := f.Pixels()
		label := fmt.Sprintf("%s (%d×%d)", f.Name, w, h)
		items = append(items, fyne.NewMenuItem(label, func() {
			mw.replaceSession(func() { mw.showError(mw.session.NewCanvas(f.CanvasSettings())) })
		}))
	}
	item := fyne.NewMenuItem("New From Format", nil)
	item.ChildMenu = fyne.NewMenu("", items...)
	return item
}

func (mw *MainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			mw.showError(err)
			return
		}
		path := reader.URI().Path()
		mw.saveLastDir(path)
		mw.replaceSession(func() {
			if strings.EqualFold(filepath.Ext(path), ".png") {
				mw.showError(mw.session.ImportPNGPreset(data, mw.session.SupportsCanvasPresets()))
				return
			}
			mw.showError(mw.session.ImportJSON(bytes.NewReader(data)))
		})
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json", ".png"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onImportImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		data, err := io.ReadAll(reader)
		if err != nil {
			mw.showError(err)
			return
		}
		go func() {
			mw.showError(mw.session.ImportFile(context.Background(), path, data))
		}()
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(append(raster.SupportedFormats(), ".json")))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// onSave stores a finite canvas in the gallery and asks where to write an
// infinite one.
func (mw *MainWindow) onSave() {
	if !mw.session.IsOpen() {
		return
	}
	if mw.session.Settings().IsInfinite {
		mw.onSaveSessionAs()
		return
	}
	go func() {
		img, err := mw.session.Save(context.Background(), nil)
		if err != nil {
			mw.showError(err)
			return
		}
		mw.statusBar.SetText("Saved to gallery " + img.ID)
	}()
}

func (mw *MainWindow) saveDialog(name string, write func(w io.Writer) error) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		mw.showError(write(writer))
	}, mw.Window)
	fd.SetFileName(name)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSaveSessionAs() {
	if !mw.session.IsOpen() {
		return
	}
	mw.saveDialog("session.json", func(w io.Writer) error {
		if mw.session.Settings().IsInfinite {
			_, err := mw.session.Save(context.Background(), w)
			return err
		}
		return mw.session.SaveDocument(w)
	})
}

// onSavePreset writes the flattened canvas with the session embedded.
func (mw *MainWindow) onSavePreset() {
	if !mw.session.IsOpen() {
		return
	}
	mw.saveDialog("canvas.png", func(w io.Writer) error {
		img, err := mw.session.Flatten(context.Background())
		if err != nil {
			return err
		}
		data, err := project.EmbedInPNG(img, mw.session.Document())
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func (mw *MainWindow) onCloseCanvas() {
	mw.confirmDiscard(mw.session.Close)
}

func (mw *MainWindow) onQuit() {
	mw.confirmDiscard(func() {
		mw.session.Close()
		mw.Window.Close()
	})
}

func (mw *MainWindow) onAddText() {
	l, err := mw.session.AddText()
	if err != nil {
		mw.showError(err)
		return
	}
	mw.editText(l.ID)
}

func (mw *MainWindow) addShape(kind layer.ShapeType) {
	_, err := mw.session.AddShape(kind, geometry.Rect{})
	mw.showError(err)
}

// editText opens a small editor for a text layer.
func (mw *MainWindow) editText(id string) {
	l, ok := mw.session.Layer(id)
	if !ok || l.Text == nil {
		return
	}
	entry := widget.NewMultiLineEntry()
	entry.SetText(l.Text.Text)
	entry.SetMinRowsVisible(4)
	dialog.ShowForm("Edit text", "Apply", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Text", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			mw.showError(mw.session.UpdateLayer(id, func(l *layer.Layer) {
				if l.Text != nil {
					l.Text.Text = entry.Text
				}
			}, true))
		}, mw.Window)
}

func (mw *MainWindow) toggleSetting(fn func(*project.CanvasSettings)) {
	cs := mw.session.Settings()
	fn(&cs)
	mw.showError(mw.session.SetSettings(cs))
}

func (mw *MainWindow) onPreferences() {
	p := mw.prefs
	endpoint := widget.NewEntry()
	endpoint.SetText(p.String(prefs.KeyAIEndpoint, ""))
	key := widget.NewPasswordEntry()
	key.SetText(p.String(prefs.KeyAIKey, ""))
	lang := widget.NewEntry()
	lang.SetText(p.String(prefs.KeyLanguage, "en"))
	w, h := p.CanvasSize()
	width := widget.NewEntry()
	width.SetText(strconv.Itoa(w))
	height := widget.NewEntry()
	height.SetText(strconv.Itoa(h))
	autoHide := widget.NewEntry()
	autoHide.SetText(strconv.FormatFloat(p.LogAutoHideSeconds(), 'f', -1, 64))
	autosave := widget.NewEntry()
	autosave.SetText(strconv.FormatFloat(p.FloatWithFallback(prefs.KeyAutosaveInterval, 30), 'f', -1, 64))

	items := []*widget.FormItem{
		widget.NewFormItem("AI endpoint", endpoint),
		widget.NewFormItem("API key", key),
		widget.NewFormItem("Language", lang),
		widget.NewFormItem("Canvas width", width),
		widget.NewFormItem("Canvas height", height),
		widget.NewFormItem("Hide log after (s)", autoHide),
		widget.NewFormItem("Autosave every (s)", autosave),
	}
	dialog.ShowForm("Preferences", "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		p.SetString(prefs.KeyAIEndpoint, endpoint.Text)
		p.SetString(prefs.KeyAIKey, key.Text)
		p.SetString(prefs.KeyLanguage, lang.Text)
		var errs []error
		for k, e := range map[string]*widget.Entry{
			prefs.KeyCanvasWidth:      width,
			prefs.KeyCanvasHeight:     height,
			prefs.KeyLogAutoHide:      autoHide,
			prefs.KeyAutosaveInterval: autosave,
		} {
			v, err := strconv.ParseFloat(e.Text, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				continue
			}
			p.SetFloat(k, v)
		}
		if err := p.Save(); err != nil {
			errs = append(errs, err)
		}
		mw.showError(errors.Join(errs...))
		mw.statusBar.SetText("Preferences saved; endpoint changes apply on restart")
	}, mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Compose images, text and shapes on a layered canvas\n"+
			"and generate new images from prompts.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
