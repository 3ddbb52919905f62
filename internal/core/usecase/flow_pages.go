package usecase

import (
	"fmt"
	"strings"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

func donationPage(platform string, body domain.PromptBody) domain.Command {
	return domain.RenderCommand{Page: domain.DonationPage{
		Platform: platform,
		Header: domain.Translatable{
			"en": fmt.Sprintf("Share your %s data", platform),
			"nl": fmt.Sprintf("Uw %s gegevens delen", platform),
		},
		Body: body,
	}}
}

func endPage() domain.Command {
	return domain.RenderCommand{Page: domain.EndPage{}}
}

func exitCommand() domain.Command {
	return domain.ExitCommand{Code: 0, Info: "Success"}
}

func filePrompt(extensions string) domain.FileInputPrompt {
	return domain.FileInputPrompt{
		Description: domain.Translatable{
			"en": "Please follow the download instructions and choose the file that you stored on your device.",
			"nl": "Volg de download instructies en kies het bestand dat u opgeslagen heeft op uw apparaat.",
		},
		Extensions: extensions,
	}
}

func retryConfirmation(platform string) domain.ConfirmPrompt {
	return domain.ConfirmPrompt{
		Text: domain.Translatable{
			"en": fmt.Sprintf("Unfortunately, we could not process your %s file. If you are sure that you selected the correct file, press Continue. To select a different file, press Try again.", platform),
			"nl": fmt.Sprintf("Helaas, kunnen we uw %s bestand niet verwerken. Weet u zeker dat u het juiste bestand heeft gekozen? Ga dan verder. Probeer opnieuw als u een ander bestand wilt kiezen.", platform),
		},
		Ok:     domain.Translatable{"en": "Try again", "nl": "Probeer opnieuw"},
		Cancel: domain.Translatable{"en": "Continue", "nl": "Verder"},
	}
}

func consentForm(platform string, table domain.Table, donateButton domain.Translatable) domain.ConsentFormPrompt {
	tables := []domain.ConsentTable{interactionsTable(platform, table)}
	if table.Empty() {
		tables = []domain.ConsentTable{emptyTable(platform)}
	}
	return domain.ConsentFormPrompt{
		Tables:       tables,
		DonateButton: donateButton,
	}
}

func interactionsTable(platform string, table domain.Table) domain.ConsentTable {
	rows := make([][]string, 0, len(table))
	for _, record := range table {
		rows = append(rows, []string{record.Timestamp, record.Command, record.Response})
	}
	return domain.ConsentTable{
		ID: platformSlug(platform) + "_interactions",
		Title: domain.Translatable{
			"en": fmt.Sprintf("Your %s Assistant data", platform),
			"nl": fmt.Sprintf("Uw %s Assistant data", platform),
		},
		Description: domain.Translatable{
			"en": "The table shows your commands and the assistant's responses. The figure below shows a word cloud of your commands; press the magnifying glass to enlarge it.",
			"nl": "In de tabel ziet u uw commando's en de reacties van de assistent. In het figuur hieronder ziet u een woordwolk; druk op het vergrootglas om een grotere woordwolk te krijgen.",
		},
		Headers: domain.TableColumns(),
		Rows:    rows,
		Visualizations: []domain.Visualization{{
			Title:      domain.Translatable{"en": "", "nl": ""},
			Type:       "wordcloud",
			TextColumn: domain.ColumnCommand,
		}},
	}
}

// emptyTable is shown when nothing was extracted so consent always has content.
func emptyTable(platform string) domain.ConsentTable {
	return domain.ConsentTable{
		ID: platformSlug(platform) + "_no_data_found",
		Title: domain.Translatable{
			"en": "Nothing went wrong, but we could not find anything",
			"nl": "Er ging niks mis, maar we konden niks vinden",
		},
		Headers: []string{"No data found"},
		Rows:    [][]string{{"No data found"}},
	}
}

func platformSlug(platform string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(platform)), " ", "_")
}
