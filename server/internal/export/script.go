package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"novel-engine/server/internal/model"
)

// ScriptLine 是剧本中的一行，Indent 表示选项等附属行
type ScriptLine struct {
	Speaker string
	Text    string
	Indent  bool
}

// ScriptLines 把场景展开成可读的剧本行，顺序与动作顺序一致
func ScriptLines(scene *model.Scene) []ScriptLine {
	var lines []ScriptLine
	for _, action := range scene.Actions() {
		snap := action.Character()
		speaker := fmt.Sprintf("%s [%s]", snap.Name, snap.State)
		payload := action.Render()

		switch a := action.(type) {
		case *model.Choice:
			lines = append(lines, ScriptLine{Speaker: speaker, Text: payload.Text})
			for i, opt := range a.Options() {
				lines = append(lines, ScriptLine{
					Text:   fmt.Sprintf("%d. %s -> %s", i+1, opt.Label, opt.Target),
					Indent: true,
				})
			}
		case *model.Jump:
			lines = append(lines, ScriptLine{Speaker: speaker, Text: payload.Text})
			lines = append(lines, ScriptLine{Text: "-> " + a.Target.String(), Indent: true})
		case *model.Pose:
			lines = append(lines, ScriptLine{Speaker: speaker, Text: "(enters)"})
		default:
			lines = append(lines, ScriptLine{Speaker: speaker, Text: payload.Text})
		}
	}
	return lines
}

// WriteScript 生成整部剧本的 PDF，每个场景一节，用于校对
func WriteScript(w io.Writer, title string, scenes []*model.Scene) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	// 内置字体只支持 cp1252，其它字符会被替换
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, scene := range scenes {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 9, tr("Scene: "+scene.Name), "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 6, tr("Background: "+scene.Background), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		for _, line := range ScriptLines(scene) {
			if line.Indent {
				pdf.SetFont("Helvetica", "", 10)
				pdf.SetX(25)
				pdf.MultiCell(0, 5, tr(line.Text), "", "L", false)
				continue
			}
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, 6, tr(line.Speaker), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(line.Text), "", "L", false)
		}
		pdf.Ln(6)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render script: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
