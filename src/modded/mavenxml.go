package modded

import (
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

const (
	defaultPromotionsURL = "https://files.minecraftforge.net/net/minecraftforge/forge/promotions_slim.json"
	defaultMavenMetadataURL = "https://maven.minecraftforge.net/net/minecraftforge/forge/maven-metadata.xml"
)

// FetchPromotions fetches Forge's promotions_slim.json, which maps game
// version to "recommended"/"latest" build labels. An empty url uses the
// default promotions endpoint.
func FetchPromotions(client *httpclient.Client, url string) (map[string]any, error) {
	if url == "" {
		url = defaultPromotionsURL
	}
	status, body, err := client.JSONRequest(http.MethodGet, url, nil, nil, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("modded: promotions fetch %q returned status %d", url, status)
	}
	return body, nil
}

// FetchMavenVersions scans a maven-metadata.xml document for every declared
// <version> entry, in document order. An empty url uses the default Forge
// maven-metadata endpoint.
func FetchMavenVersions(client *httpclient.Client, url string) ([]string, error) {
	if url == "" {
		url = defaultMavenMetadataURL
	}
	status, body, err := client.BinaryRequest(url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if status != http.StatusOK {
		return nil, errors.Errorf("modded: maven metadata fetch %q returned status %d", url, status)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return scanVersions(string(raw)), nil
}

func scanVersions(xml string) []string {
	const openTag = "<version>"
	const closeTag = "</version>"

	var out []string
	rest := xml
	for {
		start := strings.Index(rest, openTag)
		if start == -1 {
			break
		}
		rest = rest[start+len(openTag):]
		end := strings.Index(rest, closeTag)
		if end == -1 {
			break
		}
		out = append(out, rest[:end])
		rest = rest[end+len(closeTag):]
	}
	return out
}
