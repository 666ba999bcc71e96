package panels

import (
	"context"
	"time"

	"layer-composer/internal/app"
	"layer-composer/internal/gallery"
	"layer-composer/internal/logging"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// galleryPageSize is how many recent images the panel lists.
const galleryPageSize = 200

// GalleryPanel lists stored images and inserts them as layers.
type GalleryPanel struct {
	session   *app.Session
	window    fyne.Window
	container fyne.CanvasObject

	list     *widget.List
	images   []gallery.Image
	selected int
}

// NewGalleryPanel creates the gallery panel.
func NewGalleryPanel(session *app.Session) *GalleryPanel {
	gp := &GalleryPanel{session: session, selected: -1}

	gp.list = widget.NewList(
		func() int { return len(gp.images) },
		func() fyne.CanvasObject { return widget.NewLabel("gallery image") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= len(gp.images) {
				return
			}
			img := gp.images[i]
			o.(*widget.Label).SetText(img.CreatedAt.Local().Format(time.DateTime) + "  " + shortRef(img.URL))
		},
	)
	gp.list.OnSelected = func(i widget.ListItemID) { gp.selected = i }
	gp.list.OnUnselected = func(widget.ListItemID) { gp.selected = -1 }

	refresh := widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), gp.Reload)
	insert := widget.NewButtonWithIcon("Insert", theme.ContentAddIcon(), gp.insertSelected)
	del := widget.NewButtonWithIcon("", theme.DeleteIcon(), gp.deleteSelected)

	gp.container = container.NewBorder(nil, container.NewHBox(refresh, insert, del), nil, nil, gp.list)

	// Saves, merges and generations add to the gallery
	session.On(app.EventLayersChanged, func(interface{}) { gp.Reload() })
	session.On(app.EventClosed, func(interface{}) { gp.Reload() })

	return gp
}

// Container returns the panel container.
func (gp *GalleryPanel) Container() fyne.CanvasObject {
	return gp.container
}

// SetWindow sets the parent window for dialogs.
func (gp *GalleryPanel) SetWindow(w fyne.Window) {
	gp.window = w
}

// Reload refreshes the list from the store.
func (gp *GalleryPanel) Reload() {
	store := gp.session.Gallery()
	if store == nil {
		return
	}
	images, err := store.List(context.Background(), galleryPageSize)
	if err != nil {
		logging.Logger().Warn("gallery list failed", "err", err)
		return
	}
	gp.images = images
	gp.selected = -1
	gp.list.UnselectAll()
	gp.list.Refresh()
}

func (gp *GalleryPanel) current() (gallery.Image, bool) {
	if gp.selected < 0 || gp.selected >= len(gp.images) {
		return gallery.Image{}, false
	}
	return gp.images[gp.selected], true
}

func (gp *GalleryPanel) insertSelected() {
	img, ok := gp.current()
	if !ok {
		return
	}
	go func() {
		if _, err := gp.session.ImportFromGallery(context.Background(), img.ID); err != nil && gp.window != nil {
			dialog.ShowError(err, gp.window)
		}
	}()
}

func (gp *GalleryPanel) deleteSelected() {
	img, ok := gp.current()
	if !ok || gp.session.Gallery() == nil {
		return
	}
	confirm := func(yes bool) {
		if !yes {
			return
		}
		if err := gp.session.Gallery().Delete(context.Background(), img.ID); err != nil {
			logging.Logger().Warn("gallery delete failed", "id", img.ID, "err", err)
		}
		gp.Reload()
	}
	if gp.window == nil {
		confirm(true)
		return
	}
	dialog.ShowConfirm("Delete image", "Remove this image from the gallery?", confirm, gp.window)
}
