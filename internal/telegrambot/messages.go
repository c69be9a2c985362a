package telegrambot

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. Replies are rendered with Telegram's HTML parse mode, so
// every argument must be HTML-escaped by the caller.
const (
	msgNeedUsername         = "need_username"
	msgNeedUsernameRecreate = "need_username_recreate"
	msgWelcome              = "welcome"
	msgWelcomeWithKey       = "welcome_with_key"
	msgChannel              = "channel"
	msgAlreadyRegistered    = "already_registered"
	msgRegisterFailed       = "register_failed"
	msgRegisterNetwork      = "register_network"
	msgKeyView              = "key_view"
	msgKeyNotFound          = "key_not_found"
	msgKeyRetrieveFailed    = "key_retrieve_failed"
	msgKeyRetrieveError     = "key_retrieve_error"
	msgRecreateNoKey        = "recreate_no_key"
	msgRecreateDone         = "recreate_done"
	msgRecreateFailed       = "recreate_failed"
	msgRecreateError        = "recreate_error"
	msgHealth               = "health"
	msgHealthFailed         = "health_failed"
	msgHelp                 = "help"
	msgUnknownCommand       = "unknown_command"
	msgRateLimited          = "rate_limited"
	msgInternalError        = "internal_error"
	msgLatencyMillis        = "latency_millis"
	msgNever                = "never"
	msgUnknown              = "unknown"
)

var supportedLanguages = []language.Tag{
	language.English, // first entry is the fallback
	language.Russian,
}

var (
	languageMatcher = language.NewMatcher(supportedLanguages)
	messages        = buildCatalog()
)

var translations = map[language.Tag]map[string]string{
	language.English: {
		msgNeedUsername: "Sorry, you need to set a username in Telegram before you can register. " +
			"Please go to Telegram settings and set a username, then try again.",
		msgNeedUsernameRecreate: "Sorry, you need to set a username in Telegram before you can recreate your API key.",
		msgWelcome: "Welcome, @%s! You have been successfully registered in our system.\n\n" +
			"Use /viewkey to view your API key anytime.",
		msgWelcomeWithKey: "Welcome, @%s! You have been successfully registered in our system.\n\n" +
			"Your API key is:\n\n<code>%s</code>\n\n" +
			"Use /viewkey to view your API key anytime.",
		msgChannel: "\nJoin our channel for updates: %s",
		msgAlreadyRegistered: "Welcome back, @%s! You are already registered in our system. " +
			"Use /viewkey to view your key, or /recreate to regenerate it.",
		msgRegisterFailed:  "Sorry, there was an error processing your registration. Please try again later.",
		msgRegisterNetwork: "Sorry, there was a network error processing your registration. Please try again later.",
		msgKeyView: "Here is your API key:\n\n<code>%s</code>\n\n" +
			"Key Information:\n- Created: %s\n- Last Updated: %s\n- Last Used: %s\n\n" +
			"Keep this key secure and don't share it with anyone!\nUse /recreate to regenerate your key.",
		msgKeyNotFound:       "Sorry, we could not find your API key. Please use /start to register first.",
		msgKeyRetrieveFailed: "Sorry, we could not retrieve your API key. Please try again later.",
		msgKeyRetrieveError:  "Sorry, there was an error retrieving your API key. Please try again later.",
		msgRecreateNoKey:     "Sorry, we could not authenticate your request. Please use /start to register first.",
		msgRecreateDone: "Your API key has been successfully regenerated.\n\n" +
			"Your new API key is:\n\n<code>%s</code>\n\n" +
			"Keep this key secure and don't share it with anyone!",
		msgRecreateFailed: "Sorry, we could not regenerate your API key. Please try again later.",
		msgRecreateError:  "Sorry, there was an error regenerating your API key. Please try again later.",
		msgHealth: "Service status: <b>%s</b>\nReported latency: %s\nChecked at: %s\n" +
			"Round trip from bot: %d ms",
		msgHealthFailed: "Sorry, the service health check failed. Please try again later.",
		msgHelp: "This bot allows you to register for our service using your Telegram username.\n\n" +
			"Commands:\n" +
			"/start - Register for the service\n" +
			"/viewkey - View your API key\n" +
			"/recreate - Regenerate your API key\n" +
			"/health - Check the service status\n" +
			"/help - Show this message",
		msgUnknownCommand: "Sorry, I don't know that command. Use /help to see what I can do.",
		msgRateLimited:    "You are sending commands too quickly. Please wait a minute and try again.",
		msgInternalError:  "Oops, something went wrong! Please try again later.",
		msgNever:          "never",
		msgUnknown:        "unknown",
	},
	language.Russian: {
		msgNeedUsername: "Чтобы зарегистрироваться, сначала укажите имя пользователя в настройках Telegram " +
			"и попробуйте снова.",
		msgNeedUsernameRecreate: "Чтобы перевыпустить API-ключ, сначала укажите имя пользователя в настройках Telegram.",
		msgWelcome: "Добро пожаловать, @%s! Вы успешно зарегистрированы.\n\n" +
			"Используйте /viewkey, чтобы посмотреть свой API-ключ.",
		msgWelcomeWithKey: "Добро пожаловать, @%s! Вы успешно зарегистрированы.\n\n" +
			"Ваш API-ключ:\n\n<code>%s</code>\n\n" +
			"Используйте /viewkey, чтобы посмотреть его в любое время.",
		msgChannel: "\nНовости в нашем канале: %s",
		msgAlreadyRegistered: "С возвращением, @%s! Вы уже зарегистрированы. " +
			"Используйте /viewkey, чтобы посмотреть ключ, или /recreate, чтобы перевыпустить его.",
		msgRegisterFailed:  "Не удалось завершить регистрацию. Попробуйте позже.",
		msgRegisterNetwork: "Сетевая ошибка при регистрации. Попробуйте позже.",
		msgKeyView: "Ваш API-ключ:\n\n<code>%s</code>\n\n" +
			"Информация о ключе:\n- Создан: %s\n- Обновлён: %s\n- Последнее использование: %s\n\n" +
			"Храните ключ в секрете и никому его не передавайте!\nИспользуйте /recreate, чтобы перевыпустить ключ.",
		msgKeyNotFound:       "Не удалось найти ваш API-ключ. Сначала зарегистрируйтесь командой /start.",
		msgKeyRetrieveFailed: "Не удалось получить ваш API-ключ. Попробуйте позже.",
		msgKeyRetrieveError:  "Произошла ошибка при получении API-ключа. Попробуйте позже.",
		msgRecreateNoKey:     "Не удалось подтвердить ваш запрос. Сначала зарегистрируйтесь командой /start.",
		msgRecreateDone: "Ваш API-ключ успешно перевыпущен.\n\n" +
			"Новый API-ключ:\n\n<code>%s</code>\n\n" +
			"Храните ключ в секрете и никому его не передавайте!",
		msgRecreateFailed: "Не удалось перевыпустить API-ключ. Попробуйте позже.",
		msgRecreateError:  "Произошла ошибка при перевыпуске API-ключа. Попробуйте позже.",
		msgHealth: "Статус сервиса: <b>%s</b>\nЗадержка по данным сервиса: %s\nВремя проверки: %s\n" +
			"Время ответа для бота: %d мс",
		msgHealthFailed: "Проверка состояния сервиса не удалась. Попробуйте позже.",
		msgHelp: "Этот бот регистрирует вас в нашем сервисе по имени пользователя Telegram.\n\n" +
			"Команды:\n" +
			"/start - Зарегистрироваться\n" +
			"/viewkey - Показать API-ключ\n" +
			"/recreate - Перевыпустить API-ключ\n" +
			"/health - Проверить состояние сервиса\n" +
			"/help - Показать это сообщение",
		msgUnknownCommand: "Неизвестная команда. Список команд: /help",
		msgRateLimited:    "Слишком много команд подряд. Подождите минуту и попробуйте снова.",
		msgInternalError:  "Что-то пошло не так! Попробуйте позже.",
		msgNever:          "никогда",
		msgUnknown:        "неизвестно",
	},
}

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(supportedLanguages[0]))
	for tag, entries := range translations {
		for key, text := range entries {
			if err := b.SetString(tag, key, text); err != nil {
				panic("telegrambot: bad message " + key + ": " + err.Error())
			}
		}
	}
	return b
}

// printerFor picks the closest supported language for a Telegram
// language_code such as "ru" or "en-GB".
func printerFor(languageCode string) *message.Printer {
	tag := supportedLanguages[0]
	if languageCode != "" {
		_, idx, confidence := languageMatcher.Match(language.Make(languageCode))
		if confidence != language.No {
			tag = supportedLanguages[idx]
		}
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}
