// Package menu implements the interactive library and restaurant browser.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/libdine/libdine/internal/library"
	"github.com/libdine/libdine/internal/yelp"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ErrExit signals that the user asked to leave
var ErrExit = errors.New("exit requested")

const (
	promptStudy      = "Do you want to study in library? Please enter 'yes' or 'no' ('no' means exiting this program): "
	promptLibrary    = "Enter the number of the library where you want to study or “exit”: "
	promptNearby     = "Know more about the nearby restaurants, “yes” or “exit” or “back”?"
	promptRestaurant = "Please choose the number of your favorite restaurant for more details or “exit” or “back”: "

	msgInvalid      = "[ERROR] Invalid input."
	msgYesOrNo      = "Please choose between yes and no"
	msgNoRestaurant = "No restaurants nearby! Why not study at other libraries?"
	msgUnsaved      = "[WARNING] Results cannot be saved to the cache file and will be fetched again next time."
)

var (
	errorColor  = color.New(color.FgRed)
	headerColor = color.New(color.FgCyan, color.Bold)
)

// LibrarySource lists libraries and resolves their details
type LibrarySource interface {
	Directory(ctx context.Context) ([]library.Entry, error)
	Library(ctx context.Context, entry library.Entry) (library.Library, error)
}

// RestaurantSource finds restaurants near an address
type RestaurantSource interface {
	Nearby(ctx context.Context, location string) ([]yelp.Business, error)
}

// CacheHealth reports whether fetched values reach durable storage
type CacheHealth interface {
	PersistErr() error
}

// Menu drives the question and answer loop
type Menu struct {
	in          *bufio.Scanner
	out         io.Writer
	libraries   LibrarySource
	restaurants RestaurantSource

	cache  CacheHealth
	warned bool
}

// New returns a menu reading answers from in and writing to out
func New(in io.Reader, out io.Writer, libraries LibrarySource, restaurants RestaurantSource) *Menu {
	return &Menu{
		in:          bufio.NewScanner(in),
		out:         out,
		libraries:   libraries,
		restaurants: restaurants,
	}
}

// WithCache makes the menu warn once when results stop being saved
func (m *Menu) WithCache(c CacheHealth) *Menu {
	m.cache = c
	return m
}

// Run loads the library directory and serves the menu until the user exits
// or the input ends
func (m *Menu) Run(ctx context.Context) error {
	entries, err := m.libraries.Directory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load library directory: %w", err)
	}
	m.checkCache()
	logrus.Debugf("Loaded %d libraries", len(entries))

	err = m.study(ctx, entries)
	if errors.Is(err, ErrExit) {
		return nil
	}
	return err
}

func (m *Menu) study(ctx context.Context, entries []library.Entry) error {
	for {
		answer, err := m.ask(promptStudy)
		if err != nil {
			return err
		}
		switch answer {
		case "yes":
			m.listLibraries(entries)
			return m.chooseLibrary(ctx, entries)
		case "no":
			return ErrExit
		default:
			m.println(msgYesOrNo)
			m.println()
		}
	}
}

func (m *Menu) listLibraries(entries []library.Entry) {
	for i, e := range entries {
		m.printf("[%d] %s\n", i+1, e.Name)
	}
}

func (m *Menu) chooseLibrary(ctx context.Context, entries []library.Entry) error {
	for {
		answer, err := m.ask(promptLibrary)
		if err != nil {
			return err
		}
		if answer == "exit" {
			return ErrExit
		}

		n, ok := choice(answer, len(entries))
		if !ok {
			m.invalid()
			continue
		}

		entry := entries[n-1]
		lib, err := m.libraries.Library(ctx, entry)
		m.checkCache()
		if err != nil {
			m.failed(err)
			continue
		}
		m.println(lib.Info())

		if err := m.nearby(ctx, entry.Name, lib); err != nil {
			return err
		}
	}
}

// nearby returns nil when the user goes back to the library list
func (m *Menu) nearby(ctx context.Context, name string, lib library.Library) error {
	for {
		answer, err := m.ask(promptNearby)
		if err != nil {
			return err
		}
		switch answer {
		case "exit":
			return ErrExit
		case "back":
			return nil
		case "yes":
		default:
			m.invalid()
			continue
		}

		rule := strings.Repeat("-", 42)
		m.println(rule)
		headerColor.Fprintf(m.out, "List of restaurants nearby %s\n", name)
		m.println(rule)

		businesses, err := m.restaurants.Nearby(ctx, lib.Location)
		m.checkCache()
		if err != nil {
			m.failed(err)
			continue
		}
		if len(businesses) == 0 {
			m.println(msgNoRestaurant)
			m.println()
			return nil
		}

		for i, b := range businesses {
			m.printf("[%d] %s\n", i+1, b.Name)
		}
		if err := m.chooseRestaurant(businesses); err != nil {
			return err
		}
	}
}

// chooseRestaurant returns nil when the user goes back
func (m *Menu) chooseRestaurant(businesses []yelp.Business) error {
	for {
		answer, err := m.ask(promptRestaurant)
		if err != nil {
			return err
		}
		switch answer {
		case "exit":
			return ErrExit
		case "back":
			return nil
		}

		n, ok := choice(answer, len(businesses))
		if !ok {
			m.invalid()
			continue
		}
		m.describe(businesses[n-1])
	}
}

func (m *Menu) describe(b yelp.Business) {
	m.printf("%s locates at %s.\n", b.Name, b.Address)
	m.printf("Its rating level is %s.\n", FormatRating(b.Rating))
	m.printf("Please contact %s for more information.\n", b.Phone)
	m.printf("You can also navigate to this restaurant's url to learn more: %s\n", b.URL)
}

// FormatRating renders a star rating with one decimal
func FormatRating(r float64) string {
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// ask prints prompt and reads one trimmed line; end of input is ErrExit
func (m *Menu) ask(prompt string) (string, error) {
	m.printf("%s", prompt)
	if !m.in.Scan() {
		m.println()
		if err := m.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", ErrExit
	}
	return strings.TrimSpace(m.in.Text()), nil
}

// choice parses a 1-based menu number no greater than n
func choice(answer string, n int) (int, bool) {
	if answer == "" || strings.TrimLeft(answer, "0123456789") != "" {
		return 0, false
	}
	v, err := strconv.Atoi(answer)
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v, true
}

// checkCache prints msgUnsaved the first time the cache fails to persist
func (m *Menu) checkCache() {
	if m.cache == nil || m.warned {
		return
	}
	if err := m.cache.PersistErr(); err != nil {
		m.warned = true
		logrus.Debugf("Cache write failed: %v", err)
		errorColor.Fprintln(m.out, msgUnsaved)
		m.println()
	}
}

func (m *Menu) invalid() {
	errorColor.Fprintln(m.out, msgInvalid)
	m.println()
}

func (m *Menu) failed(err error) {
	logrus.Debugf("Menu action failed: %v", err)
	errorColor.Fprintf(m.out, "[ERROR] %v\n", err)
	m.println()
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func (m *Menu) println(args ...any) {
	fmt.Fprintln(m.out, args...)
}
