package cli

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/flowershow/contentsync/internal/syncsrv/diff"
	"github.com/flowershow/contentsync/internal/syncsrv/source"
	"github.com/flowershow/contentsync/pkg/api"
)

// localFile is a file found under the publish root.
type localFile struct {
	Path    string
	Content []byte
}

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".flowershow":  true,
}

// collectFiles walks root and returns the supported files below it, keyed by
// their slash separated path relative to root. A single file root is
// returned under its base name.
func collectFiles(root string) ([]localFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !source.IsSupported(root) {
			return nil, fmt.Errorf("unsupported file type: %s", root)
		}
		data, err := os.ReadFile(root)
		if err != nil {
			return nil, err
		}
		return []localFile{{Path: filepath.Base(root), Content: data}}, nil
	}

	var files []localFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && (skippedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !source.IsSupported(p) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, localFile{Path: diff.NormalizePath(filepath.ToSlash(rel)), Content: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// publishBody builds the JSON body of a publish request.
func publishBody(files []localFile, complete bool) ([]byte, error) {
	body := []byte(`{"files":[]}`)
	var err error
	for i, f := range files {
		prefix := fmt.Sprintf("files.%d.", i)
		if body, err = sjson.SetBytes(body, prefix+"path", f.Path); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, prefix+"size", len(f.Content)); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, prefix+"content", base64.StdEncoding.EncodeToString(f.Content)); err != nil {
			return nil, err
		}
	}
	if complete {
		if body, err = sjson.SetBytes(body, "complete", true); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func newPublishCmd() *cobra.Command {
	var (
		site     string
		complete bool
		wait     bool
		newSite  bool
	)
	cmd := &cobra.Command{
		Use:   "publish PATH",
		Short: "Publish a markdown file or folder",
		Long: `Publish a markdown file or folder. Without --site or a current site a new
site is created and remembered as the current site.

Examples:
  # Publish a folder as a new site
  flowershow publish ./notes --new

  # Replace the content of the current site with the folder
  flowershow publish ./notes --complete --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no publishable files found in %s", args[0])
			}
			body, err := publishBody(files, complete)
			if err != nil {
				return err
			}

			c := GetConfig()
			siteID := site
			if siteID == "" && !newSite {
				siteID = c.CurrentSite
			}
			query := map[string]string{}
			if wait {
				query["wait"] = "true"
			}
			p := "publish"
			if siteID != "" {
				p = "sites/" + siteID + "/files"
			}

			var rsp api.PublishResponse
			if _, err := NewHTTPClient(c).PostJSON(p, query, body, &rsp); err != nil {
				return err
			}
			if siteID == "" {
				c.RememberSite(rsp.SiteID, rsp.OwnerToken)
				if err := c.WriteConfig(configFile); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, rsp)
				return nil
			}
			if siteID == "" {
				fmt.Fprintf(out, "Created site %s\n", rsp.SiteID)
			}
			fmt.Fprintf(out, "Published %d file(s) to site %s\n", len(rsp.Files), rsp.SiteID)
			printSyncResult(out, rsp.SyncResponse)
			return nil
		},
	}
	cmd.Flags().StringVarP(&site, "site", "s", "", "Site to publish to")
	cmd.Flags().BoolVar(&newSite, "new", false, "Always create a new site")
	cmd.Flags().BoolVar(&complete, "complete", false, "Delete site files missing from PATH")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the sync to finish")
	return cmd
}
