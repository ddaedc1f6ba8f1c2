package main

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/griff-rees/estios/internal/fetcher"
)

var (
	fetchURLs    []string
	fetchDir     string
	fetchUnzip   bool
	fetchExtract string
)

// ftpDownloader is the surface FTP downloads need. FTP has no ETag support,
// so those URLs always transfer in full.
type ftpDownloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// httpDownloader adds the conditional-download surface HTTP provides.
type httpDownloader interface {
	ftpDownloader
	HeadETag(ctx context.Context, url string) (string, error)
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// destName derives a local file name from the URL path.
func destName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("url %s has no file name", rawURL)
	}
	return name, nil
}

// readETag returns the ETag recorded next to dest by an earlier run.
func readETag(dest string) string {
	b, err := os.ReadFile(dest + ".etag")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func writeETag(dest, etag string) {
	if etag == "" {
		return
	}
	if err := os.WriteFile(dest+".etag", []byte(etag), 0o644); err != nil {
		zap.L().Warn("record etag failed", zap.String("dest", dest), zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// fetchHTTP downloads rawURL to dest, skipping the transfer when the host
// reports the ETag recorded from a previous run. Reports whether new bytes
// were written.
func fetchHTTP(ctx context.Context, src httpDownloader, rawURL, dest string) (bool, error) {
	if etag := readETag(dest); etag != "" && fileExists(dest) {
		body, newTag, changed, err := src.DownloadIfChanged(ctx, rawURL, etag)
		if err != nil {
			return false, err
		}
		if !changed {
			return false, nil
		}
		defer body.Close() //nolint:errcheck

		file, err := os.Create(dest)
		if err != nil {
			return false, eris.Wrap(err, "create file")
		}
		defer file.Close() //nolint:errcheck
		if _, err := io.Copy(file, body); err != nil {
			return false, eris.Wrap(err, "write file")
		}
		writeETag(dest, newTag)
		return true, nil
	}

	if _, err := src.DownloadToFile(ctx, rawURL, dest); err != nil {
		return false, err
	}
	// Record the ETag so the next run can skip an unchanged release.
	if etag, err := src.HeadETag(ctx, rawURL); err == nil {
		writeETag(dest, etag)
	}
	return true, nil
}

// unpack applies the --unzip / --extract choice to a downloaded archive.
func unpack(dest, dir string, unzip bool, extract string) error {
	if !strings.HasSuffix(dest, ".zip") {
		return nil
	}
	switch {
	case extract != "":
		p, err := fetcher.ExtractZIPFile(dest, extract, dir)
		if err != nil {
			return eris.Wrapf(err, "extract %s", dest)
		}
		zap.L().Info("extracted", zap.String("archive", dest), zap.String("file", p))
	case unzip:
		files, err := fetcher.ExtractZIP(dest, dir)
		if err != nil {
			return eris.Wrapf(err, "extract %s", dest)
		}
		zap.L().Info("extracted", zap.String("archive", dest), zap.Int("files", len(files)))
	}
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download source datasets",
	Long:  "Downloads datasets over HTTP or FTP with per-host rate limiting and retries, skipping HTTP downloads whose ETag is unchanged since the previous run, and optionally unpacking ZIP archives.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir := fetchDir
		if dir == "" {
			dir = cfg.Fetch.TempDir
		}

		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
		ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{})

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(4)

		for _, rawURL := range fetchURLs {
			rawURL := rawURL
			g.Go(func() error {
				name, err := destName(rawURL)
				if err != nil {
					return err
				}
				dest := filepath.Join(dir, name)

				var fetched bool
				if strings.HasPrefix(rawURL, "ftp://") {
					_, err = ftpFetcher.DownloadToFile(ctx, rawURL, dest)
					fetched = err == nil
				} else {
					fetched, err = fetchHTTP(ctx, httpFetcher, rawURL, dest)
				}
				if err != nil {
					return eris.Wrapf(err, "download %s", rawURL)
				}
				if !fetched {
					zap.L().Info("unchanged, skipping", zap.String("url", rawURL), zap.String("dest", dest))
					return nil
				}

				zap.L().Info("downloaded", zap.String("url", rawURL), zap.String("dest", dest))
				return unpack(dest, dir, fetchUnzip, fetchExtract)
			})
		}

		return g.Wait()
	},
}

func init() {
	fetchCmd.Flags().StringArrayVar(&fetchURLs, "url", nil, "dataset URL, repeatable (required)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "download directory (default from config)")
	fetchCmd.Flags().BoolVar(&fetchUnzip, "unzip", false, "unpack downloaded ZIP archives")
	fetchCmd.Flags().StringVar(&fetchExtract, "extract", "", "extract only this entry from downloaded ZIP archives")
	_ = fetchCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(fetchCmd)
}
