package docgen

import (
	"archive/zip"
	"bytes"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:tbl>
<w:tblGrid><w:gridCol w:w="2880"/><w:gridCol w:w="2880"/><w:gridCol w:w="1440"/></w:tblGrid>
<w:tr>
<w:tc><w:p><w:r><w:t>姓名</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>待填</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>照片</w:t></w:r></w:p></w:tc>
</w:tr>
<w:tr>
<w:tc><w:p><w:r><w:t>性别</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t></w:t></w:r></w:p></w:tc>
<w:tc><w:p></w:p></w:tc>
</w:tr>
<w:tr>
<w:tc><w:p><w:r><w:t>身份证号</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>工作单位</w:t></w:r></w:p></w:tc>
</w:tr>
</w:tbl>
</w:body>
</w:document>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const testContentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
</Types>`

// writeTestTemplate builds a minimal docx in dir and returns its name.
func writeTestTemplate(t *testing.T, dir, name string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, content := range map[string]string{
		"[Content_Types].xml":          testContentTypesXML,
		"word/document.xml":            testDocumentXML,
		"word/_rels/document.xml.rels": testRelsXML,
	} {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

func readZipEntry(t *testing.T, path, entry string) []byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == entry {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return data
		}
	}
	t.Fatalf("entry %s not found in %s", entry, path)
	return nil
}

func TestHasTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTestTemplate(t, dir, TrainingFormTemplate)

	gen := NewGenerator(dir)
	assert.True(t, gen.HasTemplate(TrainingFormTemplate))
	assert.False(t, gen.HasTemplate("不存在.docx"))
}

func TestHealthCheckTemplate(t *testing.T) {
	name, ok := HealthCheckTemplate("叉车司机")
	require.True(t, ok)
	assert.Equal(t, "叉车司机体检表.docx", name)

	// Substring matching covers composite exam project names.
	name, ok = HealthCheckTemplate("锅炉水处理作业人员")
	require.True(t, ok)
	assert.Equal(t, "锅炉水处理体检表.docx", name)

	_, ok = HealthCheckTemplate("低压电工作业")
	assert.False(t, ok)
}

func TestGenerateSubstitutesLabels(t *testing.T) {
	dir := t.TempDir()
	writeTestTemplate(t, dir, TrainingFormTemplate)
	gen := NewGenerator(dir)

	output := filepath.Join(dir, "out.docx")
	fields := map[string]string{
		LabelName:    "张三",
		LabelGender:  "男",
		LabelIDCard:  "110101199003070012",
		LabelCompany: "甲公司",
	}
	require.NoError(t, gen.Generate(TrainingFormTemplate, output, fields, ""))

	docXML := string(readZipEntry(t, output, "word/document.xml"))
	assert.Contains(t, docXML, "张三")
	assert.Contains(t, docXML, "男")
	assert.NotContains(t, docXML, "待填")
	// 身份证号 sits next to the 工作单位 label cell, so neither value may
	// overwrite the label.
	assert.Contains(t, docXML, "工作单位")
	assert.NotContains(t, docXML, "110101199003070012")
	assert.NotContains(t, docXML, "甲公司")
}

func TestGeneratePlacesPhoto(t *testing.T) {
	dir := t.TempDir()
	writeTestTemplate(t, dir, TrainingFormTemplate)
	gen := NewGenerator(dir)

	photoPath := filepath.Join(dir, "photo.jpg")
	require.NoError(t, imaging.Save(imaging.New(30, 40, color.White), photoPath))

	output := filepath.Join(dir, "out.docx")
	require.NoError(t, gen.Generate(TrainingFormTemplate, output, map[string]string{LabelName: "张三"}, photoPath))

	docXML := string(readZipEntry(t, output, "word/document.xml"))
	assert.Contains(t, docXML, "w:drawing")
	assert.Contains(t, docXML, "wp:inline")

	relsXML := string(readZipEntry(t, output, "word/_rels/document.xml.rels"))
	assert.Contains(t, relsXML, "media/photo_gen.jpg")
	assert.Contains(t, relsXML, "rId2")

	media := readZipEntry(t, output, "word/media/photo_gen.jpg")
	assert.NotEmpty(t, media)

	typesXML := string(readZipEntry(t, output, "[Content_Types].xml"))
	assert.Contains(t, typesXML, `Extension="jpg"`)
}

func TestGenerateMissingPhotoStillSaves(t *testing.T) {
	dir := t.TempDir()
	writeTestTemplate(t, dir, TrainingFormTemplate)
	gen := NewGenerator(dir)

	output := filepath.Join(dir, "out.docx")
	require.NoError(t, gen.Generate(TrainingFormTemplate, output, map[string]string{LabelName: "张三"}, filepath.Join(dir, "missing.jpg")))

	docXML := string(readZipEntry(t, output, "word/document.xml"))
	assert.Contains(t, docXML, "张三")
	assert.NotContains(t, docXML, "w:drawing")
}

func TestGenerateUnknownTemplate(t *testing.T) {
	gen := NewGenerator(t.TempDir())
	err := gen.Generate("missing.docx", filepath.Join(t.TempDir(), "out.docx"), nil, "")
	assert.Error(t, err)
}

func TestSubstituteLabelsCount(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(testDocumentXML))

	n := substituteLabels(doc, map[string]string{
		LabelName:    "张三",
		LabelGender:  "男",
		LabelIDCard:  "x",
		LabelCompany: "y",
	})
	// 姓名 and 性别 get values; 身份证号 is skipped because the next cell
	// holds the 工作单位 label, and 工作单位 is the last cell of its row.
	assert.Equal(t, 2, n)
}

func TestPhotoBoxInches(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(testDocumentXML))

	cell, tbl, colIdx := photoCell(doc)
	require.NotNil(t, cell)
	assert.Equal(t, 2, colIdx)

	// No tcW on the cell, so the 1440 dxa grid column decides: one inch
	// wide, height from the portrait aspect.
	w, h := photoBoxInches(cell, tbl, colIdx)
	assert.InDelta(t, 1.0, w, 0.001)
	assert.InDelta(t, 1.4, h, 0.001)
}

func TestPhotoBoxInchesOversizedCellWidth(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(testDocumentXML))

	cell, tbl, colIdx := photoCell(doc)
	require.NotNil(t, cell)

	// An implausible tcW is ignored; the grid column still decides.
	tcW := cell.CreateElement("w:tcPr").CreateElement("w:tcW")
	tcW.CreateAttr("w:type", "dxa")
	tcW.CreateAttr("w:w", "40000")

	w, h := photoBoxInches(cell, tbl, colIdx)
	assert.InDelta(t, 1.0, w, 0.001)
	assert.InDelta(t, 1.4, h, 0.001)
}

func TestPhotoBoxInchesClamped(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(strings.ReplaceAll(testDocumentXML, `w:w="1440"`, `w:w="360"`)))

	cell, tbl, colIdx := photoCell(doc)
	require.NotNil(t, cell)

	w, h := photoBoxInches(cell, tbl, colIdx)
	assert.InDelta(t, minPhotoWidthIn, w, 0.001)
	assert.InDelta(t, minPhotoHeightIn, h, 0.001)
}
