package totp

import (
	"fmt"
	"strings"

	"github.com/boombuler/barcode/qr"
)

// DefaultQRSize es el lado del SVG en px.
const DefaultQRSize = 192

const quietZone = 4

// QRCodeSVG renderiza payload como un SVG cuadrado de size px.
func QRCodeSVG(payload string, size int) (string, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("totp: qr encode: %w", err)
	}

	bounds := code.Bounds()
	modules := bounds.Dx() + 2*quietZone

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		size, size, modules, modules)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="#ffffff"/>`, modules, modules)
	sb.WriteString(`<path fill="#000000" d="`)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if r, _, _, _ := code.At(x, y).RGBA(); r != 0 {
				continue
			}
			fmt.Fprintf(&sb, "M%d %dh1v1h-1z", x-bounds.Min.X+quietZone, y-bounds.Min.Y+quietZone)
		}
	}
	sb.WriteString(`"/></svg>`)
	return sb.String(), nil
}
