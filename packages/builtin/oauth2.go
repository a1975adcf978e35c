package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/auth/oauth2"
)

var tokenProvider = oauth2.NewProvider()

// funcOAuth2Token returns an access token from an OAuth2 token endpoint.
// Usage: ${oauth2_token($token_url, $client_id, $client_secret)}, with
// grant=password username=... password=... and scope="a b" as keywords.
// Tokens are reused until they expire.
func funcOAuth2Token(args []any, kwargs map[string]any) (any, error) {
	cfg := &oauth2.Config{
		TokenURL:     argString(args, 0, ""),
		ClientID:     argString(args, 1, ""),
		ClientSecret: argString(args, 2, ""),
		GrantType:    oauth2.ClientCredentials,
	}
	for key, value := range kwargs {
		s := fmt.Sprint(value)
		switch key {
		case "token_url":
			cfg.TokenURL = s
		case "client_id":
			cfg.ClientID = s
		case "client_secret":
			cfg.ClientSecret = s
		case "grant":
			cfg.GrantType = oauth2.GrantType(s)
		case "username":
			cfg.Username = s
		case "password":
			cfg.Password = s
		case "scope":
			cfg.Scopes = strings.Fields(s)
		default:
			return nil, fmt.Errorf("oauth2_token(): unknown keyword %q", key)
		}
	}

	token, err := tokenProvider.Token(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("oauth2_token(): %w", err)
	}
	return token.AccessToken, nil
}
