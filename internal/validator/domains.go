package validator

// email providers accepted at registration
var domains = []string{
	"gmail.com",
	"googlemail.com",
	"outlook.com",
	"hotmail.com",
	"hotmail.co.uk",
	"live.com",
	"msn.com",
	"yahoo.com",
	"yahoo.co.uk",
	"yahoo.de",
	"icloud.com",
	"me.com",
	"aol.com",
	"protonmail.com",
	"proton.me",
	"pm.me",
	"tutanota.com",
	"zoho.com",
	"yandex.com",
	"mail.com",
	"gmx.com",
	"gmx.de",
	"gmx.net",
	"web.de",
	"t-online.de",
	"freenet.de",
	"posteo.de",
	"mailbox.org",
	"fastmail.com",
	"hey.com",
	"orange.fr",
	"free.fr",
	"libero.it",
	"seznam.cz",
	"wp.pl",
	"o2.pl",
	"mail.ru",
	"qq.com",
	"163.com",
	"naver.com",
}
