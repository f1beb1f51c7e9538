package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dbrusnev/notelock/internal/client/models"
)

// List prints the cached notes, newest first.
func (a *App) List(ctx context.Context) error {
	notes := a.cache.Notes()
	if len(notes) == 0 {
		printlnFn("No notes yet.")
		return nil
	}
	for i, n := range notes {
		printlnFn(fmt.Sprintf("%d. %s [%s] %s", i+1, n.Title, a.listName(n.ListID), n.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	return nil
}

// Show displays a single note in full.
func (a *App) Show(ctx context.Context) error {
	note, err := a.selectNote()
	if err != nil {
		return err
	}

	printlnFn(note.Title)
	printlnFn(note.Content)
	printlnFn("List:", a.listName(note.ListID))
	printlnFn("Created:", note.CreatedAt.Local().Format("2006-01-02 15:04"))
	if !note.EditedAt.IsZero() {
		printlnFn("Edited:", note.EditedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Add collects a title, body and list name and persists a new note. An empty
// list name files the note under the default list; an unknown name creates
// the list.
func (a *App) Add(ctx context.Context) error {
	userID, err := a.currentUserID()
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, "Enter title", os.Stdout)
	if err != nil {
		return err
	}
	content, err := getMultiline(a.reader, "Enter note text", os.Stdout)
	if err != nil {
		return err
	}
	listName, err := getSimpleText(a.reader, "Enter list name (empty for Notes)", os.Stdout)
	if err != nil {
		return err
	}

	note, err := a.notes.AddNote(ctx, userID, title, content, listName)
	if err != nil {
		return err
	}
	printlnFn("Added note:", note.Title)
	return nil
}

// Edit rewrites a note's title, body and list. Empty answers keep the
// current values.
func (a *App) Edit(ctx context.Context) error {
	userID, err := a.currentUserID()
	if err != nil {
		return err
	}
	note, err := a.selectNote()
	if err != nil {
		return err
	}

	title, err := getSimpleText(a.reader, "Enter new title (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}
	if title == "" {
		title = note.Title
	}
	content, err := getMultiline(a.reader, "Enter new text (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}
	if content == "" {
		content = note.Content
	}
	listName, err := getSimpleText(a.reader, "Enter new list name (empty to keep)", os.Stdout)
	if err != nil {
		return err
	}
	if listName == "" {
		listName = a.listNameForEdit(note.ListID)
	}

	if _, err := a.notes.EditNote(ctx, userID, note.ID, title, content, listName); err != nil {
		return err
	}
	printlnFn("Updated note:", title)
	return nil
}

// Delete removes a note; its list goes with it when the note was the last
// one in a non-default list.
func (a *App) Delete(ctx context.Context) error {
	note, err := a.selectNote()
	if err != nil {
		return err
	}
	if err := a.notes.DeleteNote(ctx, note.ID); err != nil {
		return err
	}
	printlnFn("Deleted note:", note.Title)
	return nil
}

// Lists prints every list with its note count.
func (a *App) Lists(ctx context.Context) error {
	counts := make(map[string]int)
	for _, n := range a.cache.Notes() {
		counts[n.ListID]++
	}
	for i, l := range a.cache.Lists() {
		printlnFn(fmt.Sprintf("%d. %s (%d)", i+1, l.DisplayName(), counts[l.ID]))
	}
	return nil
}

// RenameList gives a list a new name. The default list cannot be renamed.
func (a *App) RenameList(ctx context.Context) error {
	list, err := a.selectList()
	if err != nil {
		return err
	}
	newName, err := getSimpleText(a.reader, "Enter new list name", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.notes.RenameList(ctx, list.ID, newName); err != nil {
		return err
	}
	printlnFn("Renamed list to", newName)
	return nil
}

// DeleteList removes a list and all of its notes. The default list is only
// emptied, never removed.
func (a *App) DeleteList(ctx context.Context) error {
	list, err := a.selectList()
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete %q and all of its notes? (yes/no)", list.DisplayName()), os.Stdout)
	if err != nil {
		return err
	}
	if answer != "yes" {
		printlnFn("Cancelled.")
		return nil
	}
	if err := a.notes.DeleteList(ctx, list.ID); err != nil {
		return err
	}
	printlnFn("Deleted list", list.DisplayName())
	return nil
}

// Search prints notes whose title or body contains the query,
// case-insensitively. Runs entirely against the decrypted cache; the query
// never leaves the device.
func (a *App) Search(ctx context.Context) error {
	query, err := getSimpleText(a.reader, "Enter search text", os.Stdout)
	if err != nil {
		return err
	}
	q := strings.ToLower(query)

	found := 0
	for i, n := range a.cache.Notes() {
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
			printlnFn(fmt.Sprintf("%d. %s [%s]", i+1, n.Title, a.listName(n.ListID)))
			found++
		}
	}
	if found == 0 {
		printlnFn("No matches.")
	}
	return nil
}

// Reverse flips the display order of the cached notes.
func (a *App) Reverse(ctx context.Context) error {
	a.notes.ReverseNotes()
	printlnFn("Order reversed.")
	return nil
}

// Export renders a note to PDF via the rendering service and writes the
// result next to the working directory.
func (a *App) Export(ctx context.Context) error {
	note, err := a.selectNote()
	if err != nil {
		return err
	}

	pdf, err := a.exporter.NotePDF(ctx, note)
	if err != nil {
		return err
	}

	name := exportFileName(note.Title)
	if err := os.WriteFile(name, pdf, 0o600); err != nil {
		return err
	}
	printlnFn("Saved", name)
	return nil
}

// selectNote prompts for a note number as shown by List.
func (a *App) selectNote() (models.Note, error) {
	notes := a.cache.Notes()
	if len(notes) == 0 {
		return models.Note{}, fmt.Errorf("no notes yet")
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Enter note number (1-%d)", len(notes)), os.Stdout)
	if err != nil {
		return models.Note{}, err
	}
	i, err := strconv.Atoi(answer)
	if err != nil || i < 1 || i > len(notes) {
		return models.Note{}, fmt.Errorf("no such note: %s", answer)
	}
	return notes[i-1], nil
}

// selectList prompts for a list number as shown by Lists.
func (a *App) selectList() (models.List, error) {
	lists := a.cache.Lists()
	if len(lists) == 0 {
		return models.List{}, fmt.Errorf("no lists yet")
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Enter list number (1-%d)", len(lists)), os.Stdout)
	if err != nil {
		return models.List{}, err
	}
	i, err := strconv.Atoi(answer)
	if err != nil || i < 1 || i > len(lists) {
		return models.List{}, fmt.Errorf("no such list: %s", answer)
	}
	return lists[i-1], nil
}

func (a *App) listName(listID string) string {
	if l, ok := a.cache.ListByID(listID); ok {
		return l.DisplayName()
	}
	return "?"
}

// listNameForEdit returns the name to pass through an edit so the note stays
// in its current list. The default list is addressed by the empty name.
func (a *App) listNameForEdit(listID string) string {
	l, ok := a.cache.ListByID(listID)
	if !ok || l.IsDefault() {
		return ""
	}
	return l.Name
}

func exportFileName(title string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(title))
	if safe == "" {
		safe = "note"
	}
	return safe + ".pdf"
}
