package main

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/session"
)

// --- Styles ---

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00f0ff"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00f0ff")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#313244"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff3366"))

	flashStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0c0c24")).
			Background(lipgloss.Color("#ffaa33"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#313244"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// bioScales are the full-scale values of the biomechanics bars.
var bioScales = struct{ wrist, lean, knee, symmetry float64 }{50, 45, 90, 100}

var jointNames = map[string]string{
	"right_elbow": "R Elbow",
	"left_elbow":  "L Elbow",
	"right_knee":  "R Knee",
	"left_knee":   "L Knee",
}

// --- Layout ---

// layout is the dashboard geometry in cells. Boxes include their border.
type layout struct {
	leftW, rightW int
	topH, botH    int
	videoCols     int // video box interior
	videoRows     int
	heatCols      int
	heatRows      int
}

func (m uiModel) layout() layout {
	content := max(m.height-3, 8) // title, progress, status
	l := layout{leftW: m.width * 3 / 5}
	l.rightW = m.width - l.leftW
	l.topH = max(content*3/5, 5)
	l.botH = max(content-l.topH, 4)
	l.videoCols, l.videoRows = max(l.leftW-2, 1), max(l.topH-3, 1)
	l.heatCols, l.heatRows = max(l.leftW-2, 1), max(l.botH-3, 1)
	return l
}

// pictureSize fits the current source aspect ratio into the video box.
func (m uiModel) pictureSize(l layout) (int, int) {
	w, h := m.sourceSize()
	return panel.FitCells(w, h, l.videoCols, l.videoRows)
}

func (m uiModel) sourceSize() (int, int) {
	if f, ok := m.sched.Frame(); ok && f.Width > 0 && f.Height > 0 {
		return f.Width, f.Height
	}
	return m.cfg.Render.DefaultWidth, m.cfg.Render.DefaultHeight
}

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')

	var content string
	if m.sess == nil {
		content = m.renderPicker()
	} else {
		content = m.renderDashboard()
		content += "\n" + m.renderProgress()
	}
	b.WriteString(truncateLines(content, m.width))

	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-1 {
		b.WriteRune('\n')
		rendered++
	}

	if m.showHelp {
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(m.renderStatusBar())
	}
	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("sportvision viewer")
	var state string
	if m.sess != nil {
		st := m.sess.State()
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(stateIndicator(st))).Render("●")
		state = " " + dot + " " + m.sess.Status()
	}
	right := dimStyle.Render(fmt.Sprintf("sport: %s", m.sport))
	if m.sess != nil && !m.startedAt.IsZero() {
		right = dimStyle.Render(fmt.Sprintf("sport: %s | %s", m.sess.Sport(), shortDuration(time.Since(m.startedAt))))
	}
	left := title + state
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)-1))
	return left + gap + right
}

func (m uiModel) renderStatusBar() string {
	live := m.sess != nil && m.sess.State().Live()
	finished := m.sess != nil && m.sess.State().Terminal()
	left := " " + contextHelp(live, finished)
	right := ""
	if m.sess != nil {
		st := m.sched.StoreStats()
		right = fmt.Sprintf("rx %d | drawn %d | dropped %d ", st.Writes, st.Taken, st.Dropped)
	}
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(left + gap + right)
}

func (m uiModel) renderProgress() string {
	p := m.progress
	label := "Progress "
	p.Width = max(10, m.width-lipgloss.Width(label)-1)
	return dimStyle.Render(label) + p.ViewAs(m.sched.Progress())
}

// --- Picker ---

func (m uiModel) renderPicker() string {
	leftW := m.width/2 - 1
	rightW := m.width - leftW - 3
	left := m.renderDemoList(leftW)
	right := m.renderRecent(rightW)
	return renderSplitPane(left, right, leftW, rightW, max(m.height-3, 1))
}

func (m uiModel) renderDemoList(width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Demo videos"))
	b.WriteString(dimStyle.Render("  sport: " + m.sport))
	b.WriteString("\n\n")

	switch {
	case m.loadingDemos:
		b.WriteString(dimStyle.Render("  loading demos..."))
		b.WriteRune('\n')
	case m.demosErr != nil:
		for _, line := range wrapText("Could not load demos: "+m.demosErr.Error(), max(width-2, 10)) {
			b.WriteString("  " + warnStyle.Render(line) + "\n")
		}
	case len(m.demos) == 0:
		b.WriteString(dimStyle.Render("  no demos available"))
		b.WriteRune('\n')
	}

	for i, d := range m.demos {
		line := fmt.Sprintf("  %-20s %-18s %6.1f MB", truncate(d.Name, 17), truncate(d.Filename, 15), d.SizeMB)
		if i == m.selected {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteRune('\n')
	}

	if m.notice != "" {
		b.WriteRune('\n')
		for _, line := range wrapText(m.notice, max(width-2, 10)) {
			b.WriteString("  " + warnStyle.Render(line) + "\n")
		}
	}
	b.WriteRune('\n')
	b.WriteString(dimStyle.Render("  run with --upload <file> to analyse your own video"))
	return b.String()
}

func (m uiModel) renderRecent(width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recent sessions"))
	b.WriteString("\n\n")
	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("  none yet"))
		return b.String()
	}
	for _, r := range m.recent {
		ago := shortDuration(time.Since(r.FinishedAt)) + " ago"
		line := fmt.Sprintf("  %-16s %-9s %5d frames  %s", truncate(r.SourceRef, 13), r.State, r.FramesReceived, ago)
		b.WriteString(line)
		b.WriteRune('\n')
	}
	return b.String()
}

// --- Dashboard ---

func (m uiModel) renderDashboard() string {
	l := m.layout()
	video := panelBox(m.videoTitle(), m.renderVideo(l), l.leftW, l.topH)
	heat := panelBox(fmt.Sprintf("Motion heatmap (%d)", m.sched.Heatmap().Len()), m.renderHeatmap(l), l.leftW, l.botH)

	inner := max(l.rightW-2, 1)
	analysis := strings.Join([]string{
		m.renderAction(inner),
		"",
		m.renderGauges(inner),
		"",
		m.renderBiomechanics(inner),
	}, "\n")
	right := panelBox("Current action", analysis, l.rightW, l.topH)

	entries := m.sched.Tracker().Entries()
	statsBody := m.renderStats(inner)
	timelineRows := max(l.botH-3-strings.Count(statsBody, "\n")-3, 1)
	actions := statsBody + "\n\n" + headerStyle.Render(fmt.Sprintf("Timeline (%d)", len(entries))) + "\n" +
		strings.Join(timelineLines(entries, inner, timelineRows), "\n")
	stats := panelBox("Actions", actions, l.rightW, l.botH)

	left := lipgloss.JoinVertical(lipgloss.Left, video, heat)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, right, stats)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, rightCol)
}

func (m uiModel) videoTitle() string {
	f, ok := m.sched.Frame()
	if !ok {
		return "Video"
	}
	title := fmt.Sprintf("Video  frame %d", f.FrameNumber)
	if f.TotalFrames > 0 {
		title += fmt.Sprintf("/%d", f.TotalFrames)
	}
	if f.FPS > 0 {
		title += fmt.Sprintf("  %.0f fps", f.FPS)
	}
	return title
}

func (m uiModel) renderVideo(l layout) string {
	if m.connecting() {
		msg := "Connecting to server..."
		if m.sess.State() == session.Started {
			msg = "Analysis started, waiting for frames..."
		}
		return "\n" + m.spinner.View() + " " + msg
	}
	if m.sess.State() == session.Error {
		var b strings.Builder
		for _, line := range wrapText(m.sess.Status(), max(l.videoCols, 10)) {
			b.WriteString(warnStyle.Render(line) + "\n")
		}
		return b.String()
	}

	srcW, srcH := m.sourceSize()
	pic, err := m.sched.Picture()
	var body string
	if pic != nil {
		cols, rows := pic.Cells()
		overlay := panel.NewCanvas(cols, rows)
		m.drawSkeleton(overlay, srcW, srcH)
		body = pic.Render(overlay)
	} else {
		cols, rows := m.pictureSize(l)
		c := panel.NewCanvas(cols, rows)
		m.drawSkeleton(c, srcW, srcH)
		body = c.String()
	}
	if err != nil {
		body += "\n" + dimStyle.Render("frame image unavailable: "+err.Error())
	}
	return body
}

func (m uiModel) drawSkeleton(c *panel.Canvas, srcW, srcH int) {
	if srcW <= 0 || srcH <= 0 {
		return
	}
	w, h := c.Size()
	m.sched.Skeleton().Draw(c, float64(w)/float64(srcW), float64(h)/float64(srcH))
}

func (m uiModel) renderHeatmap(l layout) string {
	c := panel.NewCanvas(l.heatCols, l.heatRows)
	m.sched.Heatmap().Draw(c)
	return c.String()
}

func (m uiModel) renderAction(width int) string {
	tr := m.sched.Tracker()
	cur, ok := tr.Current()
	if !ok {
		return dimStyle.Render("Waiting for actions...")
	}
	color := lipgloss.Color(panel.ParseColor(cur.Info.Color).Hex())
	conf := math.Round(cur.Confidence * 100)
	line := cur.Info.Icon + " " + lipgloss.NewStyle().Bold(true).Foreground(color).Render(cur.Info.Label()) +
		fmt.Sprintf("  %.0f%%", conf)
	if tr.Flashing() {
		line = flashStyle.Render(" NEW ") + " " + line
	}
	bar := m.bar
	bar.Width = max(width, 4)
	bar.FullColor = string(color)
	return line + "\n" + bar.ViewAs(cur.Confidence)
}

func (m uiModel) renderGauges(width int) string {
	gauges := m.sched.Gauges()
	if len(gauges) == 0 {
		return ""
	}
	gw := max(width/len(gauges), 4)
	cols := make([]string, 0, len(gauges))
	for _, g := range gauges {
		c := panel.NewCanvas(min(8, gw-1), 3)
		g.Draw(c, m.sched.Bands())
		name := jointNames[g.Joint]
		if name == "" {
			name = g.Joint
		}
		cell := lipgloss.NewStyle().Width(gw).Align(lipgloss.Center).
			Render(c.String() + "\n" + g.Label() + "\n" + dimStyle.Render(name))
		cols = append(cols, cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m uiModel) renderBiomechanics(width int) string {
	bio, ok := m.sched.Biomechanics()
	rows := []struct {
		label string
		v     float64
		scale float64
		unit  string
	}{
		{"Wrist speed", bio.WristSpeed, bioScales.wrist, ""},
		{"Body lean", bio.BodyLean, bioScales.lean, "°"},
		{"Knee bend", bio.KneeBend, bioScales.knee, "°"},
		{"Symmetry", bio.SymmetryScore, bioScales.symmetry, "%"},
	}
	bar := m.bar
	bar.Width = max(width-22, 4)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		value := "    --"
		frac := 0.0
		if ok {
			value = fmt.Sprintf("%6.1f%s", r.v, r.unit)
			frac = math.Max(0, math.Min(1, r.v/r.scale))
		}
		lines = append(lines, fmt.Sprintf("%-12s %s %s", r.label, bar.ViewAs(frac), value))
	}
	return strings.Join(lines, "\n")
}

func (m uiModel) renderStats(width int) string {
	stats := m.sched.Tracker().Stats()
	perRow := max(width/15, 1)
	var b strings.Builder
	for i, s := range stats {
		if i > 0 && i%perRow == 0 {
			b.WriteRune('\n')
		}
		b.WriteString(padOrTruncate(fmt.Sprintf("%s %s %d", s.Icon, s.Label, s.Count), 15))
	}
	return b.String()
}

// timelineLines lays out the newest timeline chips that fit in maxLines
// lines of width cells, oldest first.
func timelineLines(entries []panel.Entry, width, maxLines int) []string {
	if len(entries) == 0 {
		return []string{dimStyle.Render("no actions yet")}
	}
	var lines []string
	var cur []string
	curW := 0
	flush := func() {
		slices.Reverse(cur)
		lines = append(lines, strings.Join(cur, " "))
		cur, curW = nil, 0
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		chip := lipgloss.NewStyle().Foreground(lipgloss.Color(panel.ParseColor(e.Color).Hex())).
			Render(e.Icon + " " + e.Label)
		w := lipgloss.Width(chip)
		if curW > 0 && curW+1+w > width {
			flush()
			if len(lines) == maxLines {
				break
			}
		}
		if curW > 0 {
			curW++
		}
		cur = append(cur, chip)
		curW += w
	}
	if len(cur) > 0 && len(lines) < maxLines {
		flush()
	}
	slices.Reverse(lines)
	return lines
}

// panelBox frames body in a rounded border of exactly w x h cells, with
// title on the first interior line.
func panelBox(title, body string, w, h int) string {
	innerW, innerH := max(w-2, 1), max(h-2, 1)
	lines := append([]string{headerStyle.Render(title)}, strings.Split(body, "\n")...)
	if len(lines) > innerH {
		lines = lines[:innerH]
	}
	for len(lines) < innerH {
		lines = append(lines, "")
	}
	return boxStyle.Width(innerW).Height(innerH).Render(truncateLines(strings.Join(lines, "\n"), innerW))
}

// --- Split-pane rendering ---

// renderSplitPane renders two content panes side by side with a vertical separator.
func renderSplitPane(left, right string, leftWidth, rightWidth, maxHeight int) string {
	leftLines := strings.Split(left, "\n")
	rightLines := strings.Split(right, "\n")

	maxLines := min(max(len(leftLines), len(rightLines)), maxHeight)
	for len(leftLines) < maxLines {
		leftLines = append(leftLines, "")
	}
	for len(rightLines) < maxLines {
		rightLines = append(rightLines, "")
	}

	sep := dimStyle.Render("│")
	var b strings.Builder
	for i := 0; i < maxLines; i++ {
		b.WriteString(padOrTruncate(leftLines[i], leftWidth))
		b.WriteString(" ")
		b.WriteString(sep)
		b.WriteString(" ")
		b.WriteString(padOrTruncate(rightLines[i], rightWidth))
		b.WriteRune('\n')
	}
	return b.String()
}

// padOrTruncate pads or truncates a styled line to the target visible width.
func padOrTruncate(styled string, width int) string {
	vis := lipgloss.Width(styled)
	if vis > width {
		return ansi.Truncate(styled, width, "")
	}
	return styled + strings.Repeat(" ", width-vis)
}

// --- Helpers ---

// truncateLines truncates each line in content to at most width visible
// characters, preserving ANSI escape codes. This prevents terminal line
// wrapping when the window is resized narrower.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks s into lines of at most width characters, splitting on word
// boundaries where possible. If a single word exceeds width it is hard-split.
// Embedded newlines are respected; each paragraph is wrapped independently.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		lines = append(lines, wrapParagraph(para, width)...)
	}
	return lines
}

// wrapParagraph wraps a single paragraph (no embedded newlines) to width.
func wrapParagraph(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}

	var lines []string
	for len(s) > 0 {
		if len(s) <= width {
			lines = append(lines, s)
			break
		}
		cut := -1
		for i := width; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		if cut <= 0 {
			lines = append(lines, s[:width])
			s = s[width:]
		} else {
			lines = append(lines, s[:cut])
			s = s[cut+1:]
		}
	}
	return lines
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func shortDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
