package format

// builtin returns the stock formats in menu order.
func builtin() []*Format {
	return []*Format{
		// Square default matches a blank canvas.
		{Name: "Square 2048", Kind: KindScreen, Width: 2048, Height: 2048},
		{Name: "Square 1024", Kind: KindScreen, Width: 1024, Height: 1024},
		{Name: "HD 1920x1080", Kind: KindScreen, Width: 1920, Height: 1080},
		{Name: "4K 3840x2160", Kind: KindScreen, Width: 3840, Height: 2160},

		{Name: "Post 4:5", Kind: KindSocial, Width: 1080, Height: 1350},
		{Name: "Story 9:16", Kind: KindSocial, Width: 1080, Height: 1920},
		{Name: "Banner 3:1", Kind: KindSocial, Width: 1500, Height: 500},
		{Name: "Thumbnail 16:9", Kind: KindSocial, Width: 1280, Height: 720},

		// ISO 216 sizes are 210x297mm and 148x210mm.
		{Name: "A4 Portrait", Kind: KindPrint, WidthInches: 8.27, HeightInches: 11.69, DPI: 300},
		{Name: "A5 Portrait", Kind: KindPrint, WidthInches: 5.83, HeightInches: 8.27, DPI: 300},
		{Name: "Letter Portrait", Kind: KindPrint, WidthInches: 8.5, HeightInches: 11, DPI: 300},
		{Name: "Postcard 6x4", Kind: KindPrint, WidthInches: 6, HeightInches: 4, DPI: 300},
	}
}
