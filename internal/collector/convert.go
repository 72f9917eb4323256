package collector

import (
	"github.com/google/go-github/v81/github"

	"github.com/nao1215/depwatch/internal/model"
)

// repoFromGitHub converts a go-github repository to the storage model.
// Fields the API did not populate stay at their zero values; the
// database upsert keeps prior values for the nullable timestamps.
func repoFromGitHub(gh *github.Repository, source model.Source) model.Repository {
	repo := model.Repository{
		FullName:    gh.GetFullName(),
		Owner:       gh.GetOwner().GetLogin(),
		Name:        gh.GetName(),
		HTMLURL:     gh.GetHTMLURL(),
		Description: gh.GetDescription(),
		Stars:       gh.GetStargazersCount(),
		Forks:       gh.GetForksCount(),
		Language:    gh.GetLanguage(),
		Archived:    gh.GetArchived(),
		Fork:        gh.GetFork(),
		Source:      source,
	}
	if ts := gh.GetPushedAt(); !ts.IsZero() {
		repo.PushedAt = ts.Time
	}
	if ts := gh.GetCreatedAt(); !ts.IsZero() {
		repo.CreatedAt = ts.Time
	}
	return repo
}
