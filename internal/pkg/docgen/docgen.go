// Package docgen fills Word form templates with student data. Templates
// are plain docx files whose tables carry label cells (姓名, 性别, ...);
// generation rewrites word/document.xml in place and repacks the archive.
package docgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"

	"github.com/luoxh/trainsys/internal/pkg/logger"
)

const (
	documentPath     = "word/document.xml"
	relsPath         = "word/_rels/document.xml.rels"
	contentTypesPath = "[Content_Types].xml"

	imageRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	photoDPI     = 300
	photoQuality = 95
)

// Generator renders docx forms from templates stored under templateDir.
type Generator struct {
	templateDir string
}

func NewGenerator(templateDir string) *Generator {
	return &Generator{templateDir: templateDir}
}

// TemplatePath resolves a template name inside the template directory.
func (g *Generator) TemplatePath(name string) string {
	return filepath.Join(g.templateDir, name)
}

// HasTemplate reports whether the named template file exists.
func (g *Generator) HasTemplate(name string) bool {
	info, err := os.Stat(g.TemplatePath(name))
	return err == nil && !info.IsDir()
}

// Generate fills the template with fields and, when photoPath names a
// readable image, places it into the photo cell. Photo problems are
// logged and skipped; the text substitution and the save always proceed.
func (g *Generator) Generate(templateName, outputPath string, fields map[string]string, photoPath string) error {
	templatePath := g.TemplatePath(templateName)
	reader, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("opening template %s: %w", templateName, err)
	}
	defer reader.Close()

	parts, err := readParts(&reader.Reader)
	if err != nil {
		return err
	}

	docXML, ok := parts[documentPath]
	if !ok {
		return fmt.Errorf("template %s has no %s", templateName, documentPath)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(docXML); err != nil {
		return fmt.Errorf("parsing %s: %w", documentPath, err)
	}

	substituteLabels(doc, fields)

	if photoPath != "" {
		if err := g.placePhoto(doc, parts, photoPath); err != nil {
			logger.Warn().Err(err).Str("photo", photoPath).Msg("Photo placement failed, generating form without it")
		}
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serializing %s: %w", documentPath, err)
	}
	parts[documentPath] = out

	if err := writeDocx(outputPath, &reader.Reader, parts); err != nil {
		return err
	}

	logger.Info().Str("template", templateName).Str("output", outputPath).Msg("Document generated")
	return nil
}

// placePhoto renders the photo to the cell's physical size and wires it
// into the package: media part, relationship, content type. When no cell
// can host a drawing, an existing image relationship's blob is replaced
// instead so templates with a pre-placed sample photo still work.
func (g *Generator) placePhoto(doc *etree.Document, parts map[string][]byte, photoPath string) error {
	src, err := imaging.Open(photoPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("opening photo: %w", err)
	}

	cell, tbl, colIdx := photoCell(doc)

	widthIn, heightIn := defaultPhotoWidthIn, defaultPhotoWidthIn*photoAspect
	if cell != nil {
		widthIn, heightIn = photoBoxInches(cell, tbl, colIdx)
	}

	pxW := max(120, int(widthIn*photoDPI))
	pxH := max(160, int(heightIn*photoDPI))
	fitted := imaging.Fit(src, pxW, pxH, imaging.Lanczos)
	canvas := imaging.New(pxW, pxH, color.White)
	canvas = imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(photoQuality)); err != nil {
		return fmt.Errorf("encoding photo: %w", err)
	}
	jpeg := buf.Bytes()

	if cell == nil {
		return overwriteImageBlob(parts, jpeg)
	}

	rid, err := addImageRelationship(parts, jpeg)
	if err != nil {
		return err
	}
	return insertPhotoDrawing(cell, rid, widthIn, heightIn)
}

// addImageRelationship stores the JPEG as a new media part, registers it
// in the document relationships, and makes sure the jpg content type is
// declared. Returns the relationship id for the blip reference.
func addImageRelationship(parts map[string][]byte, jpeg []byte) (string, error) {
	rels := etree.NewDocument()
	if raw, ok := parts[relsPath]; ok {
		if err := rels.ReadFromBytes(raw); err != nil {
			return "", fmt.Errorf("parsing %s: %w", relsPath, err)
		}
	} else {
		root := rels.CreateElement("Relationships")
		root.CreateAttr("xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	}

	maxID := 0
	for _, rel := range rels.FindElements("//Relationship") {
		id := rel.SelectAttrValue("Id", "")
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "rId")); err == nil && n > maxID {
			maxID = n
		}
	}

	mediaName := "media/photo_gen.jpg"
	rid := fmt.Sprintf("rId%d", maxID+1)
	rel := rels.Root().CreateElement("Relationship")
	rel.CreateAttr("Id", rid)
	rel.CreateAttr("Type", imageRelType)
	rel.CreateAttr("Target", mediaName)

	out, err := rels.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("serializing %s: %w", relsPath, err)
	}
	parts[relsPath] = out
	parts["word/"+mediaName] = jpeg

	if err := ensureJpegContentType(parts); err != nil {
		return "", err
	}
	return rid, nil
}

func ensureJpegContentType(parts map[string][]byte) error {
	raw, ok := parts[contentTypesPath]
	if !ok {
		return fmt.Errorf("package has no %s", contentTypesPath)
	}

	types := etree.NewDocument()
	if err := types.ReadFromBytes(raw); err != nil {
		return fmt.Errorf("parsing %s: %w", contentTypesPath, err)
	}

	for _, def := range types.FindElements("//Default") {
		ext := strings.ToLower(def.SelectAttrValue("Extension", ""))
		if ext == "jpg" || ext == "jpeg" {
			return nil
		}
	}

	def := types.Root().CreateElement("Default")
	def.CreateAttr("Extension", "jpg")
	def.CreateAttr("ContentType", "image/jpeg")

	out, err := types.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serializing %s: %w", contentTypesPath, err)
	}
	parts[contentTypesPath] = out
	return nil
}

// overwriteImageBlob swaps the bytes of the first image the template
// already embeds. Used when the document offers no table cell to draw in.
func overwriteImageBlob(parts map[string][]byte, jpeg []byte) error {
	raw, ok := parts[relsPath]
	if !ok {
		return fmt.Errorf("no photo cell and no relationships part")
	}

	rels := etree.NewDocument()
	if err := rels.ReadFromBytes(raw); err != nil {
		return fmt.Errorf("parsing %s: %w", relsPath, err)
	}

	for _, rel := range rels.FindElements("//Relationship") {
		if rel.SelectAttrValue("Type", "") != imageRelType {
			continue
		}
		target := rel.SelectAttrValue("Target", "")
		if target == "" {
			continue
		}
		name := "word/" + strings.TrimPrefix(target, "/")
		if _, exists := parts[name]; exists {
			parts[name] = jpeg
			return nil
		}
	}
	return fmt.Errorf("no photo cell and no existing image relationship")
}

// readParts loads the archive's mutable parts. Only parts docgen may
// touch are materialized; everything else is streamed through on write.
func readParts(r *zip.Reader) (map[string][]byte, error) {
	parts := make(map[string][]byte)
	for _, f := range r.File {
		switch {
		case f.Name == documentPath, f.Name == relsPath, f.Name == contentTypesPath,
			strings.HasPrefix(f.Name, "word/media/"):
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("opening part %s: %w", f.Name, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("reading part %s: %w", f.Name, err)
			}
			parts[f.Name] = data
		}
	}
	return parts, nil
}

// writeDocx repacks the archive: unchanged entries are copied from the
// template, edited parts come from the parts map, new parts are appended.
func writeDocx(outputPath string, template *zip.Reader, parts map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	written := make(map[string]bool)

	for _, f := range template.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
		if data, edited := parts[f.Name]; edited {
			_, err = w.Write(data)
		} else {
			var rc io.ReadCloser
			rc, err = f.Open()
			if err == nil {
				_, err = io.Copy(w, rc)
				rc.Close()
			}
		}
		if err != nil {
			zw.Close()
			return fmt.Errorf("writing entry %s: %w", f.Name, err)
		}
		written[f.Name] = true
	}

	for name, data := range parts {
		if written[name] {
			continue
		}
		w, err := zw.Create(name)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			zw.Close()
			return fmt.Errorf("writing entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", outputPath, err)
	}
	return nil
}
