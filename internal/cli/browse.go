package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/libdine/libdine/internal/app"
	"github.com/libdine/libdine/internal/library"
	"github.com/libdine/libdine/internal/menu"
	"github.com/libdine/libdine/internal/yelp"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newLibrariesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the libraries of the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				entries, err := a.Libraries.Directory(cmd.Context())
				if err != nil {
					return err
				}
				return writeLibraries(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func newLibraryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "library <number>",
		Short: "Show the location and description of one library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				_, lib, err := lookupLibrary(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), lib.Info())
				return err
			})
		},
	}
}

func newRestaurantsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restaurants <number>",
		Short: "List the restaurants near one library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				entry, lib, err := lookupLibrary(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				businesses, err := a.Restaurants.Nearby(cmd.Context(), lib.Location)
				if err != nil {
					return err
				}
				if len(businesses) == 0 {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "No restaurants near %s.\n", entry.Name)
					return err
				}
				return writeBusinesses(cmd.OutOrStdout(), businesses)
			})
		},
	}
}

// lookupLibrary resolves a 1-based directory number to its entry and page
func lookupLibrary(ctx context.Context, a *app.App, arg string) (library.Entry, library.Library, error) {
	entries, err := a.Libraries.Directory(ctx)
	if err != nil {
		return library.Entry{}, library.Library{}, err
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(entries) {
		return library.Entry{}, library.Library{}, fmt.Errorf("library number must be between 1 and %d, got %q", len(entries), arg)
	}

	entry := entries[n-1]
	lib, err := a.Libraries.Library(ctx, entry)
	if err != nil {
		return entry, library.Library{}, err
	}
	return entry, lib, nil
}

func writeLibraries(w io.Writer, entries []library.Entry) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Library", "URL"})

	var data [][]string
	for i, e := range entries {
		data = append(data, []string{strconv.Itoa(i + 1), e.Name, e.URL})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeBusinesses(w io.Writer, businesses []yelp.Business) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Name", "Rating", "Address", "Phone"})

	var data [][]string
	for i, b := range businesses {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			b.Name,
			menu.FormatRating(b.Rating),
			b.Address,
			b.Phone,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
