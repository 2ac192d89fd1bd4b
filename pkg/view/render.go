package view

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
)

const (
	TextAwaitingIdentity = "Waiting for frame context..."
	TextFetching         = "Consulting the Sorting Hat..."
	TextErrorTitle       = "Sorting Hat Malfunction!"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true)
	styleSection = lipgloss.NewStyle().Bold(true).Underline(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	styleStatus  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))

	houseColors = map[model.House]lipgloss.Color{
		model.HouseGryffindor: lipgloss.Color("#ae0001"),
		model.HouseSlytherin:  lipgloss.Color("#2a623d"),
		model.HouseHufflepuff: lipgloss.Color("#ecb939"),
		model.HouseRavenclaw:  lipgloss.Color("#5d6cc0"),
	}
)

func houseStyle(h model.House) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if c, ok := houseColors[h]; ok {
		s = s.Foreground(c)
	}
	return s
}

// Render writes the snapshot as text
func Render(w io.Writer, s Snapshot) error {
	var b strings.Builder

	switch {
	case s.State == StateAwaitingIdentity:
		b.WriteString(styleMuted.Render(TextAwaitingIdentity) + "\n")

	case s.State == StateFetching:
		b.WriteString(styleMuted.Render(TextFetching) + "\n")

	case s.State == StateError:
		b.WriteString(styleError.Render(TextErrorTitle) + "\n")
		b.WriteString(s.Error + "\n")

	case s.User != nil && s.User.Hogwarts != nil:
		renderResult(&b, s)

	default:
		b.WriteString(styleMuted.Render(TextFetching) + "\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return goerr.Wrap(err, "failed to write view")
	}
	return nil
}

func renderResult(b *strings.Builder, s Snapshot) {
	user := s.User
	result := user.Hogwarts

	name := user.Profile().Name()
	if name == "" {
		name = "FID " + s.FID.String()
	}

	fmt.Fprintf(b, "%s\n", styleTitle.Render("Sorting complete for "+name+"!"))
	if user.PfpURL != "" {
		fmt.Fprintf(b, "%s\n", styleMuted.Render(user.PfpURL))
	}
	if s.Status != "" {
		fmt.Fprintf(b, "[%s]\n", styleStatus.Render(s.Status))
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "The Sorting Hat says... %s\n", houseStyle(result.PrimaryHouse).Render(string(result.PrimaryHouse)+"!"))
	if result.Summary != "" {
		fmt.Fprintf(b, "%s\n", result.Summary)
	}

	if len(result.Evidence) > 0 {
		fmt.Fprintf(b, "\n%s\n", styleSection.Render("Key Traits & Evidence"))
		for _, ev := range result.Evidence {
			fmt.Fprintf(b, "\n  %s\n", styleTitle.Render(ev.Trait))
			for _, q := range ev.Quotes {
				fmt.Fprintf(b, "    > \"%s\"\n", q)
			}
			fmt.Fprintf(b, "  %s\n", ev.Explanation)
		}
	}

	if len(result.HousePercentages) > 0 {
		fmt.Fprintf(b, "\n%s\n", styleSection.Render("House Affinity"))
		for _, a := range sortedAffinities(result.HousePercentages) {
			fmt.Fprintf(b, "  %s: %d%%\n", houseStyle(a.house).Render(string(a.house)), a.percent)
		}
	}

	if len(result.CounterArguments) > 0 {
		fmt.Fprintf(b, "\n%s\n", styleSection.Render("Why Not Other Houses?"))
		for _, h := range model.Houses() {
			reason, ok := result.CounterArguments[h]
			if !ok {
				continue
			}
			fmt.Fprintf(b, "  %s %s\n", houseStyle(h).Render(string(h)+":"), reason)
		}
	}
}

type affinity struct {
	house   model.House
	value   float64
	percent int
}

// sortedAffinities orders percentages descending. Ties keep the canonical
// house order.
func sortedAffinities(p map[model.House]float64) []affinity {
	order := make(map[model.House]int)
	for i, h := range model.Houses() {
		order[h] = i
	}

	out := make([]affinity, 0, len(p))
	for h, v := range p {
		out = append(out, affinity{house: h, value: v, percent: int(math.Round(v))})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		oi, iok := order[out[i].house]
		oj, jok := order[out[j].house]
		if iok && jok {
			return oi < oj
		}
		return out[i].house < out[j].house
	})
	return out
}
