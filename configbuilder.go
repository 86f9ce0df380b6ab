package pdfmulti

// Fixed rendering defaults. They are not derived from content.
const (
	marginTopMM    = 10
	marginRightMM  = 10
	marginBottomMM = 20 // Extra space reserved for the footer area
	marginLeftMM   = 10

	imageType    = "jpeg"
	imageQuality = 0.98
	canvasScale  = 2
)

// defaultPageBreak lists pagination rules in priority order.
var defaultPageBreak = [3]PageBreakMode{
	PageBreakAvoidAll,
	PageBreakCSS,
	PageBreakLegacy,
}

// BuildConfig returns the conversion configuration for an output named
// fileName (without extension). Every value except the file name is fixed.
func BuildConfig(fileName string) ConversionConfig {
	return ConversionConfig{
		Margins: Margins{
			Top:    marginTopMM,
			Right:  marginRightMM,
			Bottom: marginBottomMM,
			Left:   marginLeftMM,
		},
		Image:       ImageOptions{Type: imageType, Quality: imageQuality},
		Scale:       canvasScale,
		UseCORS:     true,
		Logging:     true,
		PageBreak:   defaultPageBreak,
		Unit:        UnitMillimeter,
		Format:      FormatA4,
		Orientation: OrientationPortrait,
		FileName:    fileName + "." + OutputFormatPDF,
	}
}
