package panels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"layer-composer/internal/app"
	"layer-composer/internal/generate"
	"layer-composer/internal/logging"
	"layer-composer/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const freePrompt = "Free prompt"

// GeneratePanel drives image generation and shows its log.
type GeneratePanel struct {
	session   *app.Session
	prefs     *prefs.Prefs
	window    fyne.Window
	container fyne.CanvasObject

	prompt       *widget.Entry
	presetSelect *widget.Select
	presetHelp   *widget.Label
	batch        *widget.Check
	refine       *widget.Check
	generateBtn  *widget.Button
	cancelBtn    *widget.Button
	progress     *widget.ProgressBarInfinite
	status       *widget.Label

	logCard *widget.Card
	logList *widget.List

	mu       sync.Mutex
	entries  []generate.Entry
	presets  []generate.Preset
	hideLog  *time.Timer
	language string
}

// NewGeneratePanel creates the generation panel.
func NewGeneratePanel(session *app.Session, p *prefs.Prefs) *GeneratePanel {
	gp := &GeneratePanel{
		session:  session,
		prefs:    p,
		presets:  session.Presets(),
		language: generate.DefaultLanguage,
	}
	if p != nil {
		gp.language = p.String(prefs.KeyLanguage, generate.DefaultLanguage)
	}

	gp.prompt = widget.NewMultiLineEntry()
	gp.prompt.SetPlaceHolder("Describe the image. Use {a|b} for variants.")
	gp.prompt.SetMinRowsVisible(4)

	options := []string{freePrompt}
	for _, preset := range gp.presets {
		options = append(options, preset.Name.In(gp.language))
	}
	gp.presetHelp = widget.NewLabel("")
	gp.presetHelp.Wrapping = fyne.TextWrapWord
	gp.presetSelect = widget.NewSelect(options, func(string) { gp.updatePresetHelp() })
	gp.presetSelect.SetSelected(freePrompt)

	gp.batch = widget.NewCheck("One job per selected image", nil)
	gp.refine = widget.NewCheck("Refine prompt", nil)

	gp.generateBtn = widget.NewButton("Generate", gp.onGenerate)
	gp.generateBtn.Importance = widget.HighImportance
	gp.cancelBtn = widget.NewButton("Cancel", func() { session.CancelGeneration() })
	gp.cancelBtn.Disable()
	gp.progress = widget.NewProgressBarInfinite()
	gp.progress.Stop()
	gp.progress.Hide()
	gp.status = widget.NewLabel("")

	gp.logList = widget.NewList(
		func() int {
			gp.mu.Lock()
			defer gp.mu.Unlock()
			return len(gp.entries)
		},
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(nil), widget.NewLabel("log entry"))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			gp.mu.Lock()
			if i >= len(gp.entries) {
				gp.mu.Unlock()
				return
			}
			e := gp.entries[i]
			gp.mu.Unlock()
			row := o.(*fyne.Container)
			icon := row.Objects[0].(*widget.Icon)
			if e.Separator {
				icon.SetResource(nil)
			} else {
				icon.SetResource(levelIcon(e.Level))
			}
			row.Objects[1].(*widget.Label).SetText(formatEntry(e))
		},
	)
	gp.logCard = widget.NewCard("Log", "", container.NewGridWrap(fyne.NewSize(320, 220), gp.logList))

	gp.container = container.NewVBox(
		widget.NewCard("Prompt", "", container.NewVBox(
			gp.prompt,
			gp.presetSelect,
			gp.presetHelp,
			gp.batch,
			gp.refine,
			container.NewHBox(gp.generateBtn, gp.cancelBtn, gp.status),
			gp.progress,
		)),
		gp.logCard,
	)

	// Register for events
	session.On(app.EventLogAppended, func(data interface{}) {
		if e, ok := data.(generate.Entry); ok {
			gp.appendEntry(e)
		}
	})
	session.On(app.EventGenerationChanged, func(data interface{}) {
		if n, ok := data.(int); ok {
			gp.setRunning(n)
		}
	})
	session.On(app.EventSelectionChanged, func(interface{}) { gp.updatePresetHelp() })

	return gp
}

// Container returns the panel container.
func (gp *GeneratePanel) Container() fyne.CanvasObject {
	return gp.container
}

// SetWindow sets the parent window for dialogs.
func (gp *GeneratePanel) SetWindow(w fyne.Window) {
	gp.window = w
}

func (gp *GeneratePanel) selectedPreset() (generate.Preset, bool) {
	i := gp.presetSelect.SelectedIndex() - 1
	if i < 0 || i >= len(gp.presets) {
		return generate.Preset{}, false
	}
	return gp.presets[i], true
}

func (gp *GeneratePanel) updatePresetHelp() {
	preset, ok := gp.selectedPreset()
	if !ok {
		gp.presetHelp.SetText("")
		return
	}
	help := preset.Description.In(gp.language)
	if preset.RequiresImageContext && len(gp.session.SelectedIDs()) == 0 {
		help += "\nSelect one or more image layers first."
	}
	gp.presetHelp.SetText(strings.TrimSpace(help))
	if preset.Refine {
		gp.refine.SetChecked(true)
	}
}

func (gp *GeneratePanel) onGenerate() {
	text := strings.TrimSpace(gp.prompt.Text)
	preset, hasPreset := gp.selectedPreset()
	if text == "" && !hasPreset {
		return
	}
	opts := app.GenerateOptions{
		Batch:    gp.batch.Checked,
		Refine:   gp.refine.Checked,
		Language: gp.language,
	}
	if hasPreset {
		opts.PresetID = preset.ID
	}

	go func() {
		_, err := gp.session.Generate(context.Background(), text, opts)
		switch {
		case errors.Is(err, context.Canceled):
			logging.Logger().Info("generation cancelled")
		case err != nil:
			logging.Logger().Error("generation failed", "err", err)
			if gp.window != nil {
				dialog.ShowError(err, gp.window)
			}
		}
	}()
}

func (gp *GeneratePanel) setRunning(n int) {
	if n > 0 {
		gp.cancelBtn.Enable()
		gp.progress.Show()
		gp.progress.Start()
		gp.status.SetText(fmt.Sprintf("%d running", n))
		gp.stopHideTimer()
		gp.logCard.Show()
		return
	}
	gp.cancelBtn.Disable()
	gp.progress.Stop()
	gp.progress.Hide()
	gp.status.SetText("")
	gp.scheduleHide()
}

func (gp *GeneratePanel) appendEntry(e generate.Entry) {
	gp.mu.Lock()
	gp.entries = append(gp.entries, e)
	n := len(gp.entries)
	gp.mu.Unlock()

	gp.logCard.Show()
	gp.logList.Refresh()
	gp.logList.ScrollTo(n - 1)
}

// scheduleHide collapses the log a while after the last job finished.
func (gp *GeneratePanel) scheduleHide() {
	seconds := prefs.DefaultLogAutoHide
	if gp.prefs != nil {
		seconds = gp.prefs.LogAutoHideSeconds()
	}
	if seconds <= 0 {
		return
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.hideLog != nil {
		gp.hideLog.Stop()
	}
	gp.hideLog = time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		if gp.session.Generating() == 0 {
			gp.logCard.Hide()
		}
	})
}

func (gp *GeneratePanel) stopHideTimer() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.hideLog != nil {
		gp.hideLog.Stop()
		gp.hideLog = nil
	}
}
