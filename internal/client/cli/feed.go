package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// Feed loads a page of the global feed, or with "mine" the user's own
// snaps. Pages are numbered from 1. The listed items can be addressed by
// their number in like, share, edit, delete and stats.
func (a *App) Feed(ctx context.Context, args []string) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}

	var owner int64
	if len(args) > 0 && args[0] == "mine" {
		owner = cred.User.ID
		args = args[1:]
	}
	page := 1
	if len(args) > 0 {
		if page, err = strconv.Atoi(args[0]); err != nil || page < 1 {
			return usage("feed [mine] [page]")
		}
	}

	size := a.feed.PageSize()
	p, err := a.feed.Page(ctx, cred.User.ID, owner, (page-1)*size, size)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.page = p
	a.mu.Unlock()

	if len(p.Items) == 0 {
		fmt.Fprintln(a.out, "No snaps here yet.")
		return nil
	}
	for i := range p.Items {
		printItem(a.out, i+1, p.Items[i])
	}
	if p.Partial {
		fmt.Fprintln(a.out, "Some likes, shares or names could not be loaded.")
	}
	if p.More {
		fmt.Fprintf(a.out, "More: feed %d\n", page+1)
	}
	return nil
}

// item resolves the 1-based index in args[0] against the last loaded page.
func (a *App) item(args []string, cmd string) (*models.FeedItem, error) {
	if len(args) == 0 {
		return nil, usage(cmd + " <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, usage(cmd + " <n>")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page == nil || n < 1 || n > len(a.page.Items) {
		return nil, fmt.Errorf("%w: no snap %d on the current page, run feed first", common.ErrorValidation, n)
	}
	return &a.page.Items[n-1], nil
}

func (a *App) Post(ctx context.Context) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "What's on your mind?", a.out)
	if err != nil {
		return err
	}
	p, err := a.posts.Create(ctx, client.SnapInput{
		UserID:   cred.User.ID,
		Message:  text,
		Hashtags: hashtags(text),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Posted snap %s.\n", p.ID)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	it, err := a.item(args, "edit")
	if err != nil {
		return err
	}
	if !it.Editable {
		return fmt.Errorf("%w: only your own snaps can be edited", common.ErrorValidation)
	}
	text, err := GetMultiline(a.reader, "New text", a.out)
	if err != nil {
		return err
	}
	p, err := a.posts.Update(ctx, it.ID, client.SnapInput{
		UserID:     cred.User.ID,
		Message:    text,
		Hashtags:   hashtags(text),
		Visibility: it.Visibility,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	it.Post = *p
	a.mu.Unlock()
	fmt.Fprintln(a.out, "Snap updated.")
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if _, err := a.credential(); err != nil {
		return err
	}
	it, err := a.item(args, "delete")
	if err != nil {
		return err
	}
	if !it.Editable {
		return fmt.Errorf("%w: only your own snaps can be deleted", common.ErrorValidation)
	}
	if err := a.posts.Delete(ctx, it.ID); err != nil {
		return err
	}

	a.mu.Lock()
	a.page = nil
	a.mu.Unlock()
	fmt.Fprintln(a.out, "Snap deleted.")
	return nil
}

// Like toggles the like on a listed snap.
func (a *App) Like(ctx context.Context, args []string) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	it, err := a.item(args, "like")
	if err != nil {
		return err
	}

	if it.Liked {
		err = a.interactions.Unlike(ctx, cred.User.ID, it.ID)
	} else {
		err = a.interactions.Like(ctx, cred.User.ID, it.ID)
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	it.Liked = !it.Liked
	liked := it.Liked
	a.mu.Unlock()
	if liked {
		fmt.Fprintln(a.out, "Liked.")
	} else {
		fmt.Fprintln(a.out, "Like removed.")
	}
	return nil
}

// Share toggles the share on a listed snap.
func (a *App) Share(ctx context.Context, args []string) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	it, err := a.item(args, "share")
	if err != nil {
		return err
	}

	if it.Shared {
		err = a.interactions.Unshare(ctx, cred.User.ID, it.ID)
	} else {
		err = a.interactions.Share(ctx, cred.User.ID, it.ID)
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	it.Shared = !it.Shared
	shared := it.Shared
	a.mu.Unlock()
	if shared {
		fmt.Fprintln(a.out, "Shared.")
	} else {
		fmt.Fprintln(a.out, "Share removed.")
	}
	return nil
}

// Stats prints the user's counters, or those of a listed snap.
func (a *App) Stats(ctx context.Context, args []string) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		s, err := a.stats.UserStats(ctx, cred.User.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "snaps %d, followers %d, following %d, likes %d, shares %d\n",
			s.Snaps, s.Followers, s.Following, s.Likes, s.Shares)
		return nil
	}

	it, err := a.item(args, "stats")
	if err != nil {
		return err
	}
	s, err := a.stats.SnapStats(ctx, it.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "likes %d, shares %d\n", s.Likes, s.Shares)
	return nil
}

func (a *App) Follow(ctx context.Context, args []string) error {
	cred, target, err := a.followArgs(args, "follow")
	if err != nil {
		return err
	}
	if err := a.interactions.Follow(ctx, cred.User.ID, target); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Following user %d.\n", target)
	return nil
}

func (a *App) Unfollow(ctx context.Context, args []string) error {
	cred, target, err := a.followArgs(args, "unfollow")
	if err != nil {
		return err
	}
	if err := a.interactions.Unfollow(ctx, cred.User.ID, target); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Stopped following user %d.\n", target)
	return nil
}

func (a *App) followArgs(args []string, cmd string) (*models.Credential, int64, error) {
	cred, err := a.credential()
	if err != nil {
		return nil, 0, err
	}
	if len(args) != 1 {
		return nil, 0, usage(cmd + " <user-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, 0, usage(cmd + " <user-id>")
	}
	return cred, id, nil
}

// Search finds users by name, snaps by hashtag, or snaps by text.
func (a *App) Search(ctx context.Context, args []string) error {
	if _, err := a.credential(); err != nil {
		return err
	}
	if len(args) == 0 {
		return usage("search [users|tag] <text>")
	}

	var (
		posts []models.Post
		err   error
	)
	switch args[0] {
	case "users":
		if len(args) < 2 {
			return usage("search users <name>")
		}
		users, err := a.auth.SearchUsers(ctx, args[1])
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(a.out, "No users found.")
		}
		for _, u := range users {
			fmt.Fprintf(a.out, "%d  @%s  %s\n", u.ID, u.Username, u.Location)
		}
		return nil
	case "tag":
		if len(args) < 2 {
			return usage("search tag <hashtag>")
		}
		posts, err = a.posts.SearchHashtag(ctx, args[1])
	default:
		posts, err = a.posts.SearchText(ctx, joinArgs(args))
	}
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		fmt.Fprintln(a.out, "No snaps found.")
	}
	for _, p := range posts {
		fmt.Fprintf(a.out, "%s  user %d: %s\n", p.ID, p.UserID, p.Message)
	}
	return nil
}
