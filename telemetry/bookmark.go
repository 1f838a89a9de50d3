package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFitnessBreakthrough BookmarkType = "fitness_breakthrough"
	BookmarkFirstSurvivor       BookmarkType = "first_survivor"
	BookmarkFitnessCollapse     BookmarkType = "fitness_collapse"
	BookmarkPlateau             BookmarkType = "plateau"
)

// plateauGenerations is how many flat generations trigger a plateau bookmark.
const plateauGenerations = 5

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Session     string       `csv:"session"`
	Epoch       int          `csv:"epoch"`
	Generation  int          `csv:"generation"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"session", b.Session,
		"epoch", b.Epoch,
		"generation", b.Generation,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable generations within one epoch. History is
// reset whenever the session or epoch changes.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []GenerationStats
	historySize int
	historyIdx  int
	historyFull bool

	session string
	epoch   int
	started bool

	// State tracking
	recentMeanPeak float64 // peak mean fitness since the last collapse
	sawSurvivor    bool
	flatCount      int // consecutive generations with a flat max
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < plateauGenerations {
		historySize = plateauGenerations
	}
	return &BookmarkDetector{
		history:     make([]GenerationStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats GenerationStats) []Bookmark {
	if !bd.started || stats.Session != bd.session || stats.Epoch != bd.epoch {
		bd.reset(stats.Session, stats.Epoch)
	}

	var bookmarks []Bookmark
	add := func(t BookmarkType, format string, args ...any) {
		bookmarks = append(bookmarks, Bookmark{
			Type:        t,
			Session:     stats.Session,
			Epoch:       stats.Epoch,
			Generation:  stats.Generation,
			Description: fmt.Sprintf(format, args...),
		})
	}

	history := bd.getHistory()

	// Breakthrough: max fitness > 1.5x the rolling average max
	if len(history) >= 3 {
		var sum float64
		for _, h := range history {
			sum += h.FitnessMax
		}
		avg := sum / float64(len(history))
		if avg > 0 && stats.FitnessMax > avg*1.5 {
			add(BookmarkFitnessBreakthrough, "Max fitness %.1f is %.1fx average (%.1f)", stats.FitnessMax, stats.FitnessMax/avg, avg)
		}
	}

	// First survivor: a car outlasted the run for the first time this epoch
	if !bd.sawSurvivor && stats.Survivors > 0 {
		bd.sawSurvivor = true
		add(BookmarkFirstSurvivor, "%d of %d cars survived the run", stats.Survivors, stats.Population)
	}

	// Collapse: mean fitness dropped >30% from the recent peak
	if bd.recentMeanPeak > 0 {
		drop := 1 - stats.FitnessMean/bd.recentMeanPeak
		if drop > 0.30 {
			add(BookmarkFitnessCollapse, "Mean fitness fell %.0f%% from peak %.1f to %.1f", drop*100, bd.recentMeanPeak, stats.FitnessMean)
			bd.recentMeanPeak = stats.FitnessMean
		}
	}

	// Plateau: max fitness within 1% of the previous generation
	if len(history) > 0 {
		prev := bd.history[(bd.historyIdx+bd.historySize-1)%bd.historySize].FitnessMax
		if prev > 0 && abs(stats.FitnessMax-prev)/prev < 0.01 {
			bd.flatCount++
		} else {
			bd.flatCount = 0
		}
		if bd.flatCount == plateauGenerations { // trigger exactly once per plateau
			add(BookmarkPlateau, "Max fitness flat at %.1f for %d generations", stats.FitnessMax, plateauGenerations)
		}
	}

	bd.addToHistory(stats)
	if stats.FitnessMean > bd.recentMeanPeak {
		bd.recentMeanPeak = stats.FitnessMean
	}
	return bookmarks
}

func (bd *BookmarkDetector) reset(session string, epoch int) {
	bd.session, bd.epoch, bd.started = session, epoch, true
	bd.historyIdx = 0
	bd.historyFull = false
	bd.recentMeanPeak = 0
	bd.sawSurvivor = false
	bd.flatCount = 0
}

func (bd *BookmarkDetector) addToHistory(stats GenerationStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []GenerationStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
