package notify

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/cairnhq/cairn-api/internal/domain"
)

// subjectPrefix tags email subjects so recipients can filter tracker mail.
// Push subjects omit it: the notification already arrives on a Cairn topic.
const subjectPrefix = "[Cairn] "

// commentPreviewLimit caps how much of a comment the plain-text body quotes.
// The rich body renders the full comment.
const commentPreviewLimit = 200

// markdown renders comment bodies for the rich email part. Raw HTML in the
// comment source is dropped rather than passed through.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// Message is one rendered notification: the channel-appropriate subject and
// plain body, plus an HTML alternative for channels that support it.
type Message struct {
	Subject  string
	Body     string
	RichBody *string
}

// RenderMessage renders the notification content for one channel from an
// activity's action code and details. It is a pure function: no I/O, no
// clock, no randomness.
//
// Email messages carry the full story: prefixed subject, plain body with a
// comment preview where relevant, task link footer, and an HTML alternative
// with the comment markdown rendered. Push messages are shaped for a lock
// screen: unprefixed subject and a single summary line, with the task link
// kept as the final paragraph so the push sender can turn it into a click
// action.
func RenderMessage(
	channel domain.Channel,
	action domain.ActivityAction,
	details domain.ActivityDetails,
	actorName string,
	task domain.TaskRef,
	baseURL string,
) Message {
	if actorName == "" {
		actorName = "Someone"
	}
	taskURL := TaskURL(baseURL, task)

	parts := renderParts(action, details, actorName, task.Title)

	if channel == domain.ChannelPush {
		return Message{
			Subject: parts.subject,
			Body:    parts.line + "\n\n" + taskURL,
		}
	}

	body := parts.line
	if parts.quote != "" {
		body += "\n\n" + parts.quote
	}
	body += "\n\n" + taskURL

	header := fmt.Sprintf(`<h2 style="margin: 0 0 16px 0; color: #333;">%s</h2>`,
		html.EscapeString(task.Title))
	richBody := wrapHTML(header+parts.html, taskURL)

	return Message{
		Subject:  subjectPrefix + parts.subject,
		Body:     body,
		RichBody: &richBody,
	}
}

// TaskURL builds the externally reachable link to a task from the configured
// base URL and the task's durable external ID.
func TaskURL(baseURL string, task domain.TaskRef) string {
	return strings.TrimRight(baseURL, "/") + "/tasks/" + task.ExternalID.String()
}

// messageParts is the per-action raw material the channel shaping assembles:
// an unprefixed subject, a one-line summary, an optional quoted block for the
// plain body, and the HTML fragment for the rich body.
type messageParts struct {
	subject string
	line    string
	quote   string
	html    string
}

// renderParts maps one action code onto its message catalog entry.
func renderParts(
	action domain.ActivityAction,
	details domain.ActivityDetails,
	actorName, title string,
) messageParts {
	actor := html.EscapeString(actorName)

	switch action {
	case domain.ActivityCreated:
		return messageParts{
			subject: "New task: " + title,
			line:    fmt.Sprintf("%s created a new task.", actorName),
			html:    fmt.Sprintf("<p><strong>%s</strong> created a new task.</p>", actor),
		}

	case domain.ActivityUpdated:
		summary := changeSummary(details.Changes)
		return messageParts{
			subject: "Task updated: " + title,
			line:    fmt.Sprintf("%s updated %s.", actorName, summary),
			html: fmt.Sprintf("<p><strong>%s</strong> updated %s.</p>",
				actor, html.EscapeString(summary)),
		}

	case domain.ActivityStatusChanged:
		return messageParts{
			subject: "Status changed: " + title,
			line: fmt.Sprintf("%s changed status from %s to %s.",
				actorName, details.Old, details.New),
			html: fmt.Sprintf("<p><strong>%s</strong> changed status from <code>%s</code> to <code>%s</code>.</p>",
				actor, html.EscapeString(details.Old), html.EscapeString(details.New)),
		}

	case domain.ActivityCommented:
		return messageParts{
			subject: "Comment on: " + title,
			line:    fmt.Sprintf("%s commented:", actorName),
			quote:   truncate(details.Content, commentPreviewLimit),
			html: fmt.Sprintf("<p><strong>%s</strong> commented:</p>%s",
				actor, commentHTML(details.Content)),
		}

	case domain.ActivityCommentEdited:
		return messageParts{
			subject: "Comment edited: " + title,
			line:    fmt.Sprintf("%s edited their comment:", actorName),
			quote:   truncate(details.Content, commentPreviewLimit),
			html: fmt.Sprintf("<p><strong>%s</strong> edited their comment:</p>%s",
				actor, commentHTML(details.Content)),
		}

	case domain.ActivityAttachmentAdded:
		filename := orDefault(details.Filename, "file")
		return messageParts{
			subject: "Attachment added: " + title,
			line:    fmt.Sprintf("%s uploaded %s.", actorName, filename),
			html: fmt.Sprintf("<p><strong>%s</strong> uploaded <code>%s</code>.</p>",
				actor, html.EscapeString(filename)),
		}

	case domain.ActivityAttachmentDeleted:
		filename := orDefault(details.Filename, "file")
		return messageParts{
			subject: "Attachment removed: " + title,
			line:    fmt.Sprintf("%s removed %s.", actorName, filename),
			html: fmt.Sprintf("<p><strong>%s</strong> removed <code>%s</code>.</p>",
				actor, html.EscapeString(filename)),
		}

	default:
		return messageParts{
			subject: "Activity on: " + title,
			line:    fmt.Sprintf("%s performed action: %s.", actorName, action),
			html: fmt.Sprintf("<p><strong>%s</strong> performed action: %s.</p>",
				actor, html.EscapeString(string(action))),
		}
	}
}

// changeSummary lists the touched fields of an update, e.g. "title, due date".
func changeSummary(changes []domain.FieldChange) string {
	if len(changes) == 0 {
		return "the task"
	}
	fields := make([]string, 0, len(changes))
	for _, change := range changes {
		fields = append(fields, change.Field)
	}
	return strings.Join(fields, ", ")
}

// commentHTML renders a comment's markdown into a styled blockquote for the
// rich email body. Strikethrough is supported; raw HTML is dropped.
func commentHTML(content string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		// Conversion failures are effectively impossible with a bytes.Buffer
		// sink; fall back to the escaped source rather than dropping content.
		buf.Reset()
		buf.WriteString("<p>" + html.EscapeString(content) + "</p>")
	}
	return `<blockquote style="margin: 16px 0; padding: 12px 16px; background: #f5f5f5; border-left: 4px solid #1095c1;">` +
		buf.String() + "</blockquote>"
}

// truncate shortens s to at most limit runes, marking the cut with an
// ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// orDefault returns s, or fallback when s is empty.
func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// wrapHTML embeds rendered content in the shared email document: a minimal
// inline-styled page with the task link footer, safe for mail clients that
// strip <style> blocks.
func wrapHTML(content, taskURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
    %s
    <hr style="border: none; border-top: 1px solid #ddd; margin: 24px 0;">
    <p style="margin: 0;">
        <a href="%s" style="color: #1095c1; text-decoration: none;">View task in Cairn</a>
    </p>
</body>
</html>`, content, html.EscapeString(taskURL))
}
