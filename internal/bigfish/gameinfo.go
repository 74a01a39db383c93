package bigfish

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	ioutils "github.com/bfgdl/bfg-downloader/internal/io"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// DefaultGameInfoURL is the XML-RPC endpoint answering gms.getGameInfo.
const DefaultGameInfoURL = "https://shop.bigfishgames.com/rest/V1/bfg/rpc/xml"

// DefaultDownloadURL is the base every segment url name is appended to.
const DefaultDownloadURL = "http://binscentral.bigfishgames.com/downloads/"

const gameInfoRequest = `<?xml version="1.0" encoding="utf-8"?>
<methodCall>
 <methodName>gms.getGameInfo</methodName>
 <params>
  <param>
   <value>
    <struct>
     <member><name>gameWID</name><value><string>%s</string></value></member>
     <member><name>siteID</name><value><string>1</string></value></member>
     <member><name>languageID</name><value><string>1</string></value></member>
     <member><name>email</name><value><string>gamemanager@bigfishgames.com</string></value></member>
     <member><name>extData</name><value><string></string></value></member>
     <member><name>downloadID</name><value><string>123456789</string></value></member>
    </struct>
   </value>
  </param>
 </params>
</methodCall>
`

// GameInfoClient resolves a WrapID to its name and installer segments.
//
// Example usage:
//
//	client := NewGameInfoClient(httpClient, GameInfoOptions{})
//
//	game, err := client.GetGameInfo(ctx, model.MustParseWrapID("F1234T1L1"))
//	if err != nil {
//	    return err
//	}
//	for _, seg := range game.Segments {
//	    fmt.Println(seg.URL())
//	}
type GameInfoClient struct {
	client      *bfghttp.Client
	endpoint    string
	downloadURL string
	log         logger.Logger
}

// GameInfoOptions configures a GameInfoClient.
type GameInfoOptions struct {
	// URL of the XML-RPC endpoint. Default: DefaultGameInfoURL
	URL string

	// DownloadURL is the segment base URL. Default: DefaultDownloadURL
	DownloadURL string

	// Logger receives debug output. Default: no-op
	Logger logger.Logger
}

// NewGameInfoClient creates a GameInfoClient.
func NewGameInfoClient(client *bfghttp.Client, opts GameInfoOptions) *GameInfoClient {
	if opts.URL == "" {
		opts.URL = DefaultGameInfoURL
	}
	if opts.DownloadURL == "" {
		opts.DownloadURL = DefaultDownloadURL
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &GameInfoClient{
		client:      client,
		endpoint:    opts.URL,
		downloadURL: model.NormalizeBaseURL(opts.DownloadURL),
		log:         opts.Logger,
	}
}

// GetGameInfo performs one gms.getGameInfo call.
//
// The response must contain a gameInfo member with id and name, and a
// downloadInfo member. A missing segmentList yields a game with no segments.
// Segment entries lacking fileSegmentName or urlName are skipped, as are
// demo builds. The name is sanitized for use as a directory name.
//
// Returns an error if:
//   - the request fails or the status is not 200 (*http.TransportError)
//   - the body is not XML, is an XML-RPC fault, or misses a required
//     member (*ProtocolError)
func (c *GameInfoClient) GetGameInfo(ctx context.Context, id model.WrapID) (*model.GameInfo, error) {
	c.log.Debug("Fetching game info", logger.String("wrap_id", id.String()))

	payload := fmt.Sprintf(gameInfoRequest, id.String())
	body, err := c.client.Post(ctx, c.endpoint, "application/xml", []byte(payload))
	if err != nil {
		return nil, err
	}

	game, err := c.parse(id, body)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Retrieved game info",
		logger.String("wrap_id", id.String()),
		logger.String("game", game.DisplayName()),
		logger.Int("segments", len(game.Segments)),
	)
	return game, nil
}

func (c *GameInfoClient) parse(id model.WrapID, body []byte) (*model.GameInfo, error) {
	fail := func(reason string, err error) error {
		return &ProtocolError{Op: "gameinfo", WrapID: id.String(), Reason: reason, Err: err}
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fail("decode response", err)
	}

	if fault := xmlquery.FindOne(doc, "//methodResponse/fault"); fault != nil {
		reason := memberText(fault, "faultString")
		if reason == "" {
			reason = strings.TrimSpace(fault.InnerText())
		}
		return nil, fail("fault: "+reason, nil)
	}

	gameInfo := xmlquery.FindOne(doc, "//member[name='gameInfo']/value/struct")
	if gameInfo == nil {
		return nil, fail("game info not found", nil)
	}
	gameID, ok := memberString(gameInfo, "id")
	if !ok {
		return nil, fail("game id not found", nil)
	}
	name, ok := memberString(gameInfo, "name")
	if !ok {
		return nil, fail("game name not found", nil)
	}

	downloadInfo := xmlquery.FindOne(doc, "//member[name='downloadInfo']")
	if downloadInfo == nil {
		return nil, fail("download info not found", nil)
	}

	return model.NewGameInfo(id, gameID, ioutils.SanitizeFileName(name), c.segments(downloadInfo)), nil
}

func (c *GameInfoClient) segments(downloadInfo *xmlquery.Node) []model.Segment {
	segments := []model.Segment{}

	list := xmlquery.FindOne(downloadInfo, ".//member[name='segmentList']")
	if list == nil {
		return segments
	}

	for _, entry := range xmlquery.Find(list, ".//value/struct") {
		fileName, okFile := memberString(entry, "fileSegmentName")
		urlName, okURL := memberString(entry, "urlName")
		if !okFile || !okURL || fileName == "" || urlName == "" {
			continue
		}
		if model.IsDemoFileName(fileName) {
			c.log.Debug("Skipping demo segment", logger.String("file", fileName))
			continue
		}
		segments = append(segments, model.NewSegment(fileName, urlName, c.downloadURL))
	}
	return segments
}

// memberString returns the trimmed text of the named member's value within
// a struct node, and whether the member exists.
func memberString(structNode *xmlquery.Node, name string) (string, bool) {
	value := xmlquery.FindOne(structNode, "member[name='"+name+"']/value")
	if value == nil {
		return "", false
	}
	return strings.TrimSpace(value.InnerText()), true
}

func memberText(node *xmlquery.Node, name string) string {
	value := xmlquery.FindOne(node, ".//member[name='"+name+"']/value")
	if value == nil {
		return ""
	}
	return strings.TrimSpace(value.InnerText())
}
