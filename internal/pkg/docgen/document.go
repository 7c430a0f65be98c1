package docgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	emuPerInch = 914400
	dxaPerInch = 1440

	// One-inch portrait photo box, 2.5cm x 3.5cm.
	defaultPhotoWidthIn = 2.5 / 2.54
	photoAspect         = 3.5 / 2.5
	minPhotoWidthIn     = 0.6
	minPhotoHeightIn    = 0.8
	maxPhotoWidthIn     = 20.0
)

// substituteLabels walks every table cell; when a cell's text equals a
// known label, the matching value is written into the next cell of the
// same row. The first run of the first paragraph keeps its formatting.
func substituteLabels(doc *etree.Document, fields map[string]string) int {
	replaced := 0
	for _, tbl := range doc.FindElements("//w:tbl") {
		for _, row := range tbl.FindElements(".//w:tr") {
			cells := row.SelectElements("w:tc")
			for i, cell := range cells {
				label := strings.TrimSpace(cellText(cell))
				value, known := fields[label]
				if !known || i+1 >= len(cells) {
					continue
				}
				target := cells[i+1]
				// A label next to a label is a layout artifact, not a
				// value slot.
				if _, alsoLabel := fields[strings.TrimSpace(cellText(target))]; alsoLabel {
					continue
				}
				setCellText(target, value)
				replaced++
			}
		}
	}
	return replaced
}

// cellText concatenates every text node under a table cell.
func cellText(cell *etree.Element) string {
	var sb strings.Builder
	for _, t := range cell.FindElements(".//w:t") {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// setCellText writes value into the first run of the cell's first
// paragraph, clears the other runs, and empties remaining paragraphs.
func setCellText(cell *etree.Element, value string) {
	paragraphs := cell.SelectElements("w:p")
	if len(paragraphs) == 0 {
		p := cell.CreateElement("w:p")
		r := p.CreateElement("w:r")
		setRunText(r, value)
		return
	}

	first := paragraphs[0]
	runs := first.SelectElements("w:r")
	if len(runs) == 0 {
		setRunText(first.CreateElement("w:r"), value)
	} else {
		setRunText(runs[0], value)
		for _, r := range runs[1:] {
			clearRunText(r)
		}
	}

	for _, p := range paragraphs[1:] {
		for _, r := range p.SelectElements("w:r") {
			clearRunText(r)
		}
	}
}

func setRunText(run *etree.Element, value string) {
	t := run.SelectElement("w:t")
	if t == nil {
		t = run.CreateElement("w:t")
	}
	t.SetText(value)
	t.CreateAttr("xml:space", "preserve")
}

func clearRunText(run *etree.Element) {
	for _, t := range run.SelectElements("w:t") {
		t.SetText("")
	}
}

// photoCell locates the cell the photo belongs in: the first cell whose
// text mentions 照片 (or the bare 照), else the top-right cell of the
// first table. Returns the cell, its table, and its column index.
func photoCell(doc *etree.Document) (*etree.Element, *etree.Element, int) {
	tables := doc.FindElements("//w:tbl")
	for _, tbl := range tables {
		for _, row := range tbl.FindElements(".//w:tr") {
			for ci, cell := range row.SelectElements("w:tc") {
				txt := strings.TrimSpace(cellText(cell))
				if strings.Contains(txt, "照片") || strings.Contains(txt, "照") {
					return cell, tbl, ci
				}
			}
		}
	}

	if len(tables) > 0 {
		rows := tables[0].FindElements(".//w:tr")
		if len(rows) > 0 {
			cells := rows[0].SelectElements("w:tc")
			if len(cells) > 0 {
				return cells[len(cells)-1], tables[0], len(cells) - 1
			}
		}
	}
	return nil, nil, 0
}

// photoBoxInches derives the physical photo size from the cell width:
// w:tcPr/w:tcW in dxa when present and sane, else the table grid column,
// else the one-inch default. Height follows the portrait aspect; both
// dimensions are clamped to a readable minimum.
func photoBoxInches(cell, tbl *etree.Element, colIdx int) (float64, float64) {
	widthIn := 0.0

	if tcW := cell.FindElement("w:tcPr/w:tcW"); tcW != nil {
		if tcW.SelectAttrValue("w:type", "") == "dxa" {
			if v, err := strconv.Atoi(tcW.SelectAttrValue("w:w", "")); err == nil {
				if in := float64(v) / dxaPerInch; in > 0 && in <= maxPhotoWidthIn {
					widthIn = in
				}
			}
		}
	}

	if widthIn == 0 && tbl != nil {
		cols := tbl.FindElements("w:tblGrid/w:gridCol")
		if colIdx >= 0 && colIdx < len(cols) {
			if v, err := strconv.Atoi(cols[colIdx].SelectAttrValue("w:w", "")); err == nil {
				if in := float64(v) / dxaPerInch; in > 0 && in <= maxPhotoWidthIn {
					widthIn = in
				}
			}
		}
	}

	if widthIn == 0 {
		widthIn = defaultPhotoWidthIn
	}

	heightIn := widthIn * photoAspect
	if widthIn < minPhotoWidthIn {
		widthIn = minPhotoWidthIn
	}
	if heightIn < minPhotoHeightIn {
		heightIn = minPhotoHeightIn
	}
	return widthIn, heightIn
}

// insertPhotoDrawing replaces the cell's content with a single centered
// paragraph holding an inline picture bound to relationship rid.
func insertPhotoDrawing(cell *etree.Element, rid string, widthIn, heightIn float64) error {
	for _, p := range cell.SelectElements("w:p") {
		cell.RemoveChild(p)
	}

	p := cell.CreateElement("w:p")
	pPr := p.CreateElement("w:pPr")
	jc := pPr.CreateElement("w:jc")
	jc.CreateAttr("w:val", "center")
	run := p.CreateElement("w:r")

	cx := int64(widthIn * emuPerInch)
	cy := int64(heightIn * emuPerInch)

	fragment := etree.NewDocument()
	if err := fragment.ReadFromString(drawingXML(rid, cx, cy)); err != nil {
		return fmt.Errorf("building drawing fragment: %w", err)
	}
	run.AddChild(fragment.Root().Copy())
	return nil
}

// drawingXML renders the wp:inline drawing markup. Namespace prefixes
// the document root may not declare (wp, a, pic, r) are declared locally.
func drawingXML(rid string, cx, cy int64) string {
	return fmt.Sprintf(`<w:drawing xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">
<wp:extent cx="%[2]d" cy="%[3]d"/>
<wp:effectExtent l="0" t="0" r="0" b="0"/>
<wp:docPr id="1001" name="IDPhoto"/>
<wp:cNvGraphicFramePr>
<a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/>
</wp:cNvGraphicFramePr>
<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:nvPicPr>
<pic:cNvPr id="1001" name="IDPhoto"/>
<pic:cNvPicPr/>
</pic:nvPicPr>
<pic:blipFill>
<a:blip r:embed="%[1]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/>
<a:stretch><a:fillRect/></a:stretch>
</pic:blipFill>
<pic:spPr>
<a:xfrm><a:off x="0" y="0"/><a:ext cx="%[2]d" cy="%[3]d"/></a:xfrm>
<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>
</pic:spPr>
</pic:pic>
</a:graphicData>
</a:graphic>
</wp:inline>
</w:drawing>`, rid, cx, cy)
}
