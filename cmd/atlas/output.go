package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/five82/atlas/internal/detail"
	"github.com/five82/atlas/internal/restcountries"
)

func population(n int64) string {
	if n <= 0 {
		return "N/A"
	}
	return humanize.Comma(n)
}

// printCountries writes one aligned row per country.
func printCountries(w io.Writer, countries []restcountries.Country) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tCAPITAL\tREGION\tPOPULATION")
	for _, c := range countries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.Code, c.Name.Common, c.CapitalOrNA(), c.Region, population(c.Population))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d countries\n", len(countries))
	return err
}

// printDetail writes a country's fields, its borders and map links.
func printDetail(w io.Writer, d detail.Detail, favorite bool, mapsKey string) error {
	c := d.Country
	title := c.Name.Common
	if favorite {
		title += " ★"
	}
	fmt.Fprintf(w, "%s (%s)\n", title, c.Code)
	if c.Name.Official != "" && c.Name.Official != c.Name.Common {
		fmt.Fprintf(w, "%s\n", c.Name.Official)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	region := c.Region
	if strings.TrimSpace(region) == "" {
		region = "N/A"
	}
	rows := [][2]string{
		{"Native name", c.NativeName()},
		{"Population", population(c.Population)},
		{"Region", region},
		{"Subregion", c.SubregionOrNA()},
		{"Capital", c.CapitalOrNA()},
		{"Top level domain", c.TLDSummary()},
		{"Currencies", c.CurrencySummary()},
		{"Languages", c.LanguageSummary()},
		{"Map", c.MapEmbedURL(mapsKey)},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(d.Borders) == 0 && len(d.Missing) == 0 {
		_, err := fmt.Fprintln(w, "Border countries: none")
		return err
	}
	names := make([]string, 0, len(d.Borders))
	for _, b := range d.Borders {
		names = append(names, fmt.Sprintf("%s (%s)", b.Name.Common, b.Code))
	}
	fmt.Fprintf(w, "Border countries: %s\n", strings.Join(names, ", "))
	if len(d.Missing) > 0 {
		fmt.Fprintf(w, "Could not load: %s\n", strings.Join(d.Missing, ", "))
	}
	return nil
}
