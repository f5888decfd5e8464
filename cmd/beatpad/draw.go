package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
)

const (
	cellWidth  = 15
	cellHeight = 4
	gridTop    = 2
)

func (a *app) draw() {
	if a.screen == nil {
		return
	}
	a.screen.Clear()
	width, _ := a.screen.Size()
	now := time.Now()

	p := a.currentPack()
	header := fmt.Sprintf("beatpad | %s", p.Name)
	if p.Genre != "" {
		header += " (" + p.Genre + ")"
	}
	header += fmt.Sprintf(" | pack %d/%d", a.packIdx+1, len(a.packs))
	a.text(0, 0, tcell.StyleDefault.Bold(true), header)

	for i := 0; i < padCount; i++ {
		x := (i % 4) * cellWidth
		y := gridTop + (i/4)*cellHeight
		a.drawPad(i, x, y, now)
	}

	y := gridTop + 4*cellHeight
	a.text(0, y, tcell.StyleDefault, a.metronomeLine(now))
	y++
	a.text(0, y, tcell.StyleDefault, a.outputLine())
	y++
	if a.message != "" {
		a.text(0, y, tcell.StyleDefault.Foreground(tcell.ColorYellow), a.message)
	}
	y += 2
	a.text(0, y, tcell.StyleDefault.Dim(true), clip(a.reg.String(), width))
	y++
	a.text(0, y, tcell.StyleDefault.Dim(true), clip("pads 1234/qwer/asdf/zxcv  m metronome  +/- bpm  [/] click vol  t click sound", width))
	y++
	a.text(0, y, tcell.StyleDefault.Dim(true), clip("p next pack  u unlock  o rotate pads  d demo  s suspend  space stop all  esc quit", width))

	a.screen.Show()
}

func (a *app) drawPad(i, x, y int, now time.Time) {
	if i >= len(a.pads) {
		a.box(x, y, tcell.StyleDefault.Dim(true))
		return
	}
	pad := a.pads[i]
	style := tcell.StyleDefault.Foreground(pad.color)

	p, on := a.active[pad.sound]
	if on {
		style = style.Reverse(true)
	}
	a.box(x, y, style)
	a.text(x+1, y+1, style, clip(fmt.Sprintf("%c %s", padKeys[i], pad.title), cellWidth-3))

	if on && p.length > 0 {
		frac := float64(now.Sub(p.started)) / float64(p.length)
		filled := int(min(1, frac) * float64(cellWidth-3))
		a.text(x+1, y+2, style, strings.Repeat("=", filled)+strings.Repeat(" ", cellWidth-3-filled))
	}
}

func (a *app) box(x, y int, style tcell.Style) {
	w, h := cellWidth-1, cellHeight-1
	for dx := 1; dx < w-1; dx++ {
		a.screen.SetContent(x+dx, y, '-', nil, style)
		a.screen.SetContent(x+dx, y+h-1, '-', nil, style)
	}
	for dy := 1; dy < h-1; dy++ {
		a.screen.SetContent(x, y+dy, '|', nil, style)
		a.screen.SetContent(x+w-1, y+dy, '|', nil, style)
		for dx := 1; dx < w-1; dx++ {
			a.screen.SetContent(x+dx, y+dy, ' ', nil, style)
		}
	}
	for _, c := range [][2]int{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}} {
		a.screen.SetContent(x+c[0], y+c[1], '+', nil, style)
	}
}

func (a *app) metronomeLine(now time.Time) string {
	st := a.engine.Metronome().State()
	dot := " "
	if st.Running && now.Sub(a.beat) < 120*time.Millisecond {
		dot = "*"
	}
	state := "off"
	if st.Running {
		state = "on"
	}
	return fmt.Sprintf("[%s] metronome %s | %.0f bpm | click %s | vol %.1f", dot, state, a.bpm, a.clickSound(), a.volume)
}

func (a *app) outputLine() string {
	var parts []string
	switch {
	case a.audio.IsDisabled():
		parts = append(parts, "audio disabled")
	case a.audio.IsSilent():
		parts = append(parts, "silent mode")
	default:
		parts = append(parts, "audio on")
	}
	if a.suspended {
		parts = append(parts, "suspended")
	}
	if d := a.engine.Demo().State(); d.Playing {
		parts = append(parts, fmt.Sprintf("demo %s (%s)", d.Pack, d.Duration.Round(time.Second)))
	}
	if a.midi != nil {
		if port := a.midi.Port(); port != "" {
			parts = append(parts, "midi "+port)
		} else {
			parts = append(parts, "midi unavailable")
		}
	}
	return strings.Join(parts, " | ")
}

func (a *app) text(x, y int, style tcell.Style, s string) {
	for i, r := range []rune(s) {
		a.screen.SetContent(x+i, y, r, nil, style)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
