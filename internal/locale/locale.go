// Package locale renders the bot's user-facing messages in the guild's
// configured language.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type Key string

const (
	NowPlaying     Key = "now-playing"
	InternalError  Key = "internal-error"
	StreamError    Key = "stream-error"
	QueueEmpty     Key = "queue-empty"
	Added          Key = "added"
	AddedFront     Key = "added-front"
	AddedPlaylist  Key = "added-playlist"
	Skipped        Key = "skipped"
	Stopped        Key = "stopped"
	Paused         Key = "paused"
	Resumed        Key = "resumed"
	NotInVoice     Key = "not-in-voice"
	NothingPlaying Key = "nothing-playing"
	LanguageSet    Key = "language-set"
	QueueTitle     Key = "queue-title"
	HistoryTitle   Key = "history-title"
	Removed        Key = "removed"
	Cleared        Key = "cleared"
	NotFound       Key = "not-found"
	BadPosition    Key = "bad-position"
	BadLanguage    Key = "bad-language"
)

const Default = "en"

var messages = map[language.Tag]map[Key]string{
	language.English: {
		NowPlaying:     "Now playing **%s** (requested by <@%s>)",
		InternalError:  "Something went wrong, stopping playback.",
		StreamError:    "Could not play **%s**, stopping playback.",
		QueueEmpty:     "The queue is empty.",
		Added:          "Added **%s** to the queue.",
		AddedFront:     "Added **%s** to play next.",
		AddedPlaylist:  "Added %d songs to the queue.",
		Skipped:        "Skipped.",
		Stopped:        "Stopped.",
		Paused:         "Paused.",
		Resumed:        "Resumed.",
		NotInVoice:     "You need to be in a voice channel.",
		NothingPlaying: "Nothing is playing.",
		LanguageSet:    "Language set to %s.",
		QueueTitle:     "Queue",
		HistoryTitle:   "Recently played",
		Removed:        "Removed **%s** from the queue.",
		Cleared:        "Cleared %d entries from the queue.",
		NotFound:       "Nothing found for that query.",
		BadPosition:    "There is no entry at that position.",
		BadLanguage:    "Unsupported language. Try one of: %s.",
	},
	language.Japanese: {
		NowPlaying:     "再生中: **%s** (リクエスト: <@%s>)",
		InternalError:  "エラーが発生したため再生を停止します。",
		StreamError:    "**%s** を再生できないため再生を停止します。",
		QueueEmpty:     "キューは空です。",
		Added:          "**%s** をキューに追加しました。",
		AddedFront:     "**%s** を次に再生します。",
		AddedPlaylist:  "%d 曲をキューに追加しました。",
		Skipped:        "スキップしました。",
		Stopped:        "停止しました。",
		Paused:         "一時停止しました。",
		Resumed:        "再開しました。",
		NotInVoice:     "ボイスチャンネルに参加してください。",
		NothingPlaying: "再生中の曲はありません。",
		LanguageSet:    "言語を %s に設定しました。",
		QueueTitle:     "キュー",
		HistoryTitle:   "再生履歴",
		Removed:        "**%s** をキューから削除しました。",
		Cleared:        "キューから %d 件削除しました。",
		NotFound:       "見つかりませんでした。",
		BadPosition:    "その位置には何もありません。",
		BadLanguage:    "未対応の言語です。次から選んでください: %s",
	},
	language.Spanish: {
		NowPlaying:     "Reproduciendo **%s** (pedido por <@%s>)",
		InternalError:  "Algo salió mal, se detiene la reproducción.",
		StreamError:    "No se pudo reproducir **%s**, se detiene la reproducción.",
		QueueEmpty:     "La cola está vacía.",
		Added:          "**%s** añadido a la cola.",
		AddedFront:     "**%s** sonará a continuación.",
		AddedPlaylist:  "%d canciones añadidas a la cola.",
		Skipped:        "Saltado.",
		Stopped:        "Detenido.",
		Paused:         "En pausa.",
		Resumed:        "Reanudado.",
		NotInVoice:     "Tienes que estar en un canal de voz.",
		NothingPlaying: "No se está reproduciendo nada.",
		LanguageSet:    "Idioma cambiado a %s.",
		QueueTitle:     "Cola",
		HistoryTitle:   "Reproducido recientemente",
		Removed:        "**%s** eliminado de la cola.",
		Cleared:        "Se eliminaron %d entradas de la cola.",
		NotFound:       "No se encontró nada para esa búsqueda.",
		BadPosition:    "No hay ninguna entrada en esa posición.",
		BadLanguage:    "Idioma no soportado. Prueba con: %s.",
	},
}

var (
	supported = []language.Tag{language.English, language.Japanese, language.Spanish}
	matcher   = language.NewMatcher(supported)
	cat       = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			_ = b.SetString(tag, string(key), msg)
		}
	}
	return b
}

// Match maps any BCP 47 tag onto the closest supported language.
func Match(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Supported reports whether lang matches a supported language with at least
// high confidence, and returns its canonical code.
func Supported(lang string) (string, bool) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}

func Codes() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		base, _ := t.Base()
		out[i] = base.String()
	}
	return out
}

func Text(lang string, key Key, args ...any) string {
	p := message.NewPrinter(Match(lang), message.Catalog(cat))
	return p.Sprintf(string(key), args...)
}
