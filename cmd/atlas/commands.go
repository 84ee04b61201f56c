package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/atlas/internal/app"
	"github.com/five82/atlas/internal/listing"
)

// cli holds the persistent flag values shared by every command.
type cli struct {
	configPath string
	prefsPath  string
	ephemeral  bool
}

func (c *cli) options() app.Options {
	return app.Options{
		ConfigPath: c.configPath,
		PrefsPath:  c.prefsPath,
		Ephemeral:  c.ephemeral,
	}
}

// withApp opens the application for one headless command.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, c.options())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "atlas",
		Short: "Browse the countries of the world from the terminal",
		Long: `atlas lists every country from the REST Countries API, narrows the list by
name and by region, subregion, language or currency, and shows each country
with its neighbours. Signed-in users keep a list of favorite countries.

Run without a subcommand to start the interactive browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), c.options())
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/atlas/config.toml)")
	root.PersistentFlags().StringVar(&c.prefsPath, "prefs", "", "preferences file (default ~/.config/atlas/prefs.toml)")
	root.PersistentFlags().BoolVar(&c.ephemeral, "ephemeral", false, "keep the session and favorites in memory only")

	root.AddCommand(
		newSearchCmd(c),
		newShowCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newFavoritesCmd(c),
	)
	return root
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		region, subregion, language, currency, capital string
	)
	cmd := &cobra.Command{
		Use:   "search [name]",
		Short: "List countries matching a name and an optional category filter",
		Example: `  atlas search united
  atlas search --region europe
  atlas search land --language german
  atlas search --capital paris`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			filter, err := pickFilter(map[listing.FilterType]string{
				listing.FilterRegion:    region,
				listing.FilterSubregion: subregion,
				listing.FilterLanguage:  language,
				listing.FilterCurrency:  currency,
			})
			if err != nil {
				return err
			}
			if strings.TrimSpace(capital) != "" && (term != "" || filter.Active()) {
				return errors.New("--capital cannot be combined with a name or another filter")
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if strings.TrimSpace(capital) != "" {
					countries, err := a.SearchCapital(ctx, capital)
					if err != nil {
						return err
					}
					return printCountries(cmd.OutOrStdout(), countries)
				}
				countries, err := a.Search(ctx, term, filter)
				if err != nil {
					return err
				}
				return printCountries(cmd.OutOrStdout(), countries)
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "only countries in this region")
	cmd.Flags().StringVar(&subregion, "subregion", "", "only countries in this subregion")
	cmd.Flags().StringVar(&language, "language", "", "only countries speaking this language")
	cmd.Flags().StringVar(&currency, "currency", "", "only countries using this currency")
	cmd.Flags().StringVar(&capital, "capital", "", "look countries up by capital city")
	return cmd
}

// pickFilter returns the single non-blank filter among values.
func pickFilter(values map[listing.FilterType]string) (listing.Filter, error) {
	var picked listing.Filter
	for _, ft := range listing.FilterTypes() {
		v := strings.TrimSpace(values[ft])
		if v == "" {
			continue
		}
		if picked.Active() {
			return listing.Filter{}, fmt.Errorf("only one filter may be set, got --%s and --%s", picked.Type, ft)
		}
		picked = listing.Filter{Type: ft, Value: v}
	}
	return picked, nil
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show one country with its border countries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.LoadCatalog(ctx); err != nil {
					a.Logger.Debug("catalog unavailable, borders resolved one by one", zap.Error(err))
				}
				d, err := a.Show(ctx, args[0])
				if err != nil {
					return err
				}
				favorite := a.Session.IsFavorite(d.Country.Code)
				return printDetail(cmd.OutOrStdout(), d, favorite, a.Config.MapsEmbedKey)
			})
		},
	}
}

func newLoginCmd(c *cli) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Start a session so favorites can be managed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				user, err := a.Login(args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> with %d favorites.\n",
					user.Name, user.Email, len(a.Session.Favorites()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email's local part)")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(_ context.Context, a *app.App) error {
				user, ok := a.Session.User()
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				if err := a.Logout(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s.\n", user.Email)
				return nil
			})
		},
	}
}

func newFavoritesCmd(c *cli) *cobra.Command {
	list := func(cmd *cobra.Command, args []string) error {
		return c.withApp(cmd, func(_ context.Context, a *app.App) error {
			favs, err := a.Favorites()
			if err != nil {
				return err
			}
			if len(favs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "You haven't added any countries to your favorites yet.")
				return nil
			}
			return printCountries(cmd.OutOrStdout(), favs)
		})
	}

	root := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "List and manage favorite countries",
		Args:    cobra.NoArgs,
		RunE:    list,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List favorite countries",
			Args:  cobra.NoArgs,
			RunE:  list,
		},
		&cobra.Command{
			Use:   "add <code>...",
			Short: "Add countries to favorites by code",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
					for _, code := range args {
						country, err := a.AddFavorite(ctx, code)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s).\n", country.Name.Common, country.Code)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "remove <code>...",
			Aliases: []string{"rm"},
			Short:   "Remove countries from favorites by code",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(cmd, func(_ context.Context, a *app.App) error {
					for _, code := range args {
						country, ok, err := a.RemoveFavorite(code)
						if err != nil {
							return err
						}
						if !ok {
							fmt.Fprintf(cmd.OutOrStdout(), "%s is not a favorite.\n", strings.ToUpper(strings.TrimSpace(code)))
							continue
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s).\n", country.Name.Common, country.Code)
					}
					return nil
				})
			},
		},
	)
	return root
}
