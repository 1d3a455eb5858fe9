package domain

// Message is a chat-neutral notification payload. Field values may contain
// mrkdwn links of the form <url|text>.
type Message struct {
	BuildID   BuildID
	Pretext   string
	Color     string
	Title     string
	TitleLink string
	Fields    []Field
}

type Field struct {
	Title string
	Value string
	Short bool
}
