package vision

import "fmt"

// transcribeSystemPrompt instructs the model to transcribe everything and,
// for floor plans, to emit room/dimension pairs in a fixed textual format
// the downstream scanner understands, plus an optional JSON block that is
// validated against a schema before use.
const transcribeSystemPrompt = "You are reading a property document: typically a floor plan, " +
	"specification sheet, or handover pack page. Transcribe ALL visible text " +
	"faithfully, preserving line breaks. Do not summarize and do not invent text. " +
	"If the page is a floor plan, additionally list every labelled room with its " +
	"dimensions, one room per pair of lines, exactly like:\n" +
	"ROOM: Kitchen\n" +
	"DIMENSIONS: 4.2 x 3.1\n" +
	"Keep the units shown on the drawing (metres or millimetres). " +
	"When you are confident about the rooms you may also append a fenced json " +
	"code block of the form {\"rooms\":[{\"room\":\"kitchen\",\"length_m\":4.2,\"width_m\":3.1}]} " +
	"with canonical snake_case room names. Never guess dimensions that are not on the page."

func transcribeUserPrompt(pageNo int) string {
	return fmt.Sprintf("Page %d of the document is attached. Transcribe it.", pageNo)
}
